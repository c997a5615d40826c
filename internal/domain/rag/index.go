package rag

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	applog "hybridrag/internal/platform/log"
)

// 向量文件格式：magic + version + dims + count + float32 LE 行主序数据。
// 文本列表单独存 JSON 数组，两者按下标一一对应。
const (
	indexMagic   = "HRIX"
	indexVersion = uint32(1)
)

// FlatIndex 平铺 L2 向量索引。加载后只读，可被并发检索共享。
// 距离为平方 L2（不开方），与常见平铺索引实现的返回值一致。
type FlatIndex struct {
	dims    int
	vectors [][]float32
	texts   []string
}

// Hit 单条最近邻命中
type Hit struct {
	Index    int
	Distance float64
}

// LoadFlatIndex 启动时一次性加载向量文件与文本文件。
// 两个文件长度不一致、维度非法或文件缺失均为致命配置错误。
func LoadFlatIndex(vectorPath, textsPath string) (*FlatIndex, error) {
	vectors, dims, err := readVectorFile(vectorPath)
	if err != nil {
		return nil, fmt.Errorf("load vector file %q: %w", vectorPath, err)
	}

	texts, err := readTextsFile(textsPath)
	if err != nil {
		return nil, fmt.Errorf("load texts file %q: %w", textsPath, err)
	}

	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("index/texts length mismatch: %d vectors vs %d texts", len(vectors), len(texts))
	}

	applog.Info("[RAG/Index] Loaded flat index",
		"vectors", len(vectors),
		"dims", dims,
	)

	return &FlatIndex{
		dims:    dims,
		vectors: vectors,
		texts:   texts,
	}, nil
}

// Dims 返回向量维度
func (ix *FlatIndex) Dims() int {
	return ix.dims
}

// Len 返回语料条数
func (ix *FlatIndex) Len() int {
	return len(ix.vectors)
}

// Text 按下标取回段落文本
func (ix *FlatIndex) Text(i int) string {
	return ix.texts[i]
}

// Search 精确 L2 最近邻检索，按距离升序返回 min(topK, Len()) 条。
func (ix *FlatIndex) Search(query []float32, topK int) ([]Hit, error) {
	if len(query) != ix.dims {
		return nil, fmt.Errorf("query dims %d != index dims %d", len(query), ix.dims)
	}
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}

	hits := make([]Hit, 0, len(ix.vectors))
	for i, v := range ix.vectors {
		hits = append(hits, Hit{Index: i, Distance: squaredL2(query, v)})
	}

	sort.Slice(hits, func(a, b int) bool {
		if hits[a].Distance == hits[b].Distance {
			return hits[a].Index < hits[b].Index
		}
		return hits[a].Distance < hits[b].Distance
	})

	if topK > len(hits) {
		topK = len(hits)
	}
	return hits[:topK], nil
}

func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

// ── 持久化 ────────────────────────────────────────────────────

// WriteFlatIndex 写出向量文件与文本文件（索引构建工具使用）。
func WriteFlatIndex(vectorPath, textsPath string, vectors [][]float32, texts []string) error {
	if len(vectors) != len(texts) {
		return fmt.Errorf("vectors/texts length mismatch: %d vs %d", len(vectors), len(texts))
	}
	if len(vectors) == 0 {
		return fmt.Errorf("refusing to write empty index")
	}

	dims := len(vectors[0])
	for i, v := range vectors {
		if len(v) != dims {
			return fmt.Errorf("vector %d has dims %d, want %d", i, len(v), dims)
		}
	}

	if err := writeVectorFile(vectorPath, vectors, dims); err != nil {
		return fmt.Errorf("write vector file %q: %w", vectorPath, err)
	}

	data, err := json.Marshal(texts)
	if err != nil {
		return fmt.Errorf("marshal texts: %w", err)
	}
	if err := os.WriteFile(textsPath, data, 0o644); err != nil {
		return fmt.Errorf("write texts file %q: %w", textsPath, err)
	}

	return nil
}

func writeVectorFile(path string, vectors [][]float32, dims int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if _, err := w.WriteString(indexMagic); err != nil {
		return err
	}
	for _, v := range []uint32{indexVersion, uint32(dims), uint32(len(vectors))} {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	buf := make([]byte, 4)
	for _, vec := range vectors {
		for _, x := range vec {
			binary.LittleEndian.PutUint32(buf, math.Float32bits(x))
			if _, err := w.Write(buf); err != nil {
				return err
			}
		}
	}
	return w.Flush()
}

func readVectorFile(path string) ([][]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	r := bufio.NewReader(f)

	magic := make([]byte, len(indexMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, 0, fmt.Errorf("read magic: %w", err)
	}
	if string(magic) != indexMagic {
		return nil, 0, fmt.Errorf("bad magic %q, not a vector index file", magic)
	}

	var version, dims, count uint32
	for _, target := range []*uint32{&version, &dims, &count} {
		if err := binary.Read(r, binary.LittleEndian, target); err != nil {
			return nil, 0, fmt.Errorf("read header: %w", err)
		}
	}
	if version != indexVersion {
		return nil, 0, fmt.Errorf("unsupported index version %d", version)
	}
	if dims == 0 {
		return nil, 0, fmt.Errorf("index has zero dims")
	}

	vectors := make([][]float32, 0, count)
	buf := make([]byte, 4)
	for i := uint32(0); i < count; i++ {
		vec := make([]float32, dims)
		for j := uint32(0); j < dims; j++ {
			if _, err := io.ReadFull(r, buf); err != nil {
				return nil, 0, fmt.Errorf("read vector %d: %w", i, err)
			}
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf))
		}
		vectors = append(vectors, vec)
	}

	return vectors, int(dims), nil
}

func readTextsFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var texts []string
	if err := json.Unmarshal(data, &texts); err != nil {
		return nil, fmt.Errorf("parse texts JSON: %w", err)
	}
	return texts, nil
}
