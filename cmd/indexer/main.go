package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"hybridrag/internal/domain/rag"
	"hybridrag/internal/platform/config"
	applog "hybridrag/internal/platform/log"
)

// combinedColumns 拼入向量化文本的 CSV 列，按此顺序输出
var combinedColumns = []struct {
	label  string
	header string
}{
	{"DR Number", "DR_NO"},
	{"Crime", "Crm Cd Desc"},
	{"Location", "LOCATION"},
	{"Area", "AREA NAME"},
	{"Date Occurred", "DATE OCC"},
	{"Time", "TIME OCC"},
	{"Victim Age", "Vict Age"},
	{"Victim Sex", "Vict Sex"},
	{"Premises", "Premis Desc"},
	{"Status", "Status Desc"},
}

func main() {
	var (
		csvPath    = flag.String("csv", "crime.csv", "crime dataset CSV path")
		vectorPath = flag.String("out-vectors", "crime_index.bin", "output vector index file")
		textsPath  = flag.String("out-texts", "crime_texts.json", "output passage texts file")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Config load failed: %v\n", err)
		os.Exit(1)
	}
	applog.Init(applog.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	buildID := uuid.NewString()
	applog.Infof("📊 Loading crime dataset from %s (build %s)", *csvPath, buildID)

	texts, err := loadCombinedTexts(*csvPath)
	if err != nil {
		applog.Fatalf("❌ Failed to load dataset: %v", err)
	}
	applog.Infof("✅ Loaded %d crime records", len(texts))

	embedder := rag.NewOpenAIEmbedder(rag.OpenAIEmbedderConfig{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.Embedding.Model,
		Dims:    cfg.Embedding.Dims,
	})

	applog.Infof("🧠 Generating embeddings for %d records (model: %s)...", len(texts), cfg.Embedding.Model)
	start := time.Now()
	vectors, err := embedder.Embed(context.Background(), texts)
	if err != nil {
		applog.Fatalf("❌ Embedding failed: %v", err)
	}
	applog.Infof("✅ Generated %d embeddings in %s", len(vectors), time.Since(start).Round(time.Second))

	if err := rag.WriteFlatIndex(*vectorPath, *textsPath, vectors, texts); err != nil {
		applog.Fatalf("❌ Failed to write index: %v", err)
	}

	applog.Infof("✨ Vector store created successfully")
	applog.Infof("📍 Index file: %s", *vectorPath)
	applog.Infof("📍 Texts file: %s", *textsPath)
}

// loadCombinedTexts 读取 CSV 并把每行拼成一条检索文本。
// 缺失列按空值处理，列顺序以 combinedColumns 为准而非 CSV 顺序。
func loadCombinedTexts(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read CSV header: %w", err)
	}
	colIdx := make(map[string]int, len(header))
	for i, name := range header {
		colIdx[strings.TrimSpace(name)] = i
	}

	var texts []string
	for line := 2; ; line++ {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read CSV line %d: %w", line, err)
		}
		texts = append(texts, combineRecord(record, colIdx))
	}
	if len(texts) == 0 {
		return nil, fmt.Errorf("dataset %s contains no records", path)
	}
	return texts, nil
}

func combineRecord(record []string, colIdx map[string]int) string {
	parts := make([]string, 0, len(combinedColumns))
	for _, col := range combinedColumns {
		value := ""
		if idx, ok := colIdx[col.header]; ok && idx < len(record) {
			value = strings.TrimSpace(record[idx])
		}
		parts = append(parts, fmt.Sprintf("%s: %s", col.label, value))
	}
	return strings.Join(parts, ", ")
}
