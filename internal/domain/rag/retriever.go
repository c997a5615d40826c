package rag

import (
	"context"
	"fmt"
	"time"

	applog "hybridrag/internal/platform/log"
)

// RetrievedPassage 单条检索结果。Distance 为非负的相异度（越小越相关），
// Rank 是返回序列中的 1 起始位置，与 Distance 升序一致。
type RetrievedPassage struct {
	Text     string  `json:"text"`
	Distance float64 `json:"distance"`
	Rank     int     `json:"rank"`
}

// Retriever 向量相似度检索引擎。语料与索引在构造后只读，
// 可被并发请求无锁共享。
type Retriever struct {
	embedder Embedder
	index    *FlatIndex
}

// NewRetriever 创建检索引擎。Embedder 输出维度与索引维度不一致
// 属于致命配置错误，在此处而非检索期失败。
func NewRetriever(embedder Embedder, index *FlatIndex) (*Retriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if index == nil {
		return nil, fmt.Errorf("index is required")
	}
	if embedder.Dims() != index.Dims() {
		return nil, fmt.Errorf("embedder dims %d != index dims %d", embedder.Dims(), index.Dims())
	}
	return &Retriever{embedder: embedder, index: index}, nil
}

// Search 对 query 做一次 Embedding，再在索引上做精确 L2 最近邻检索。
// 返回 min(topK, 语料条数) 条，按 Distance 升序，Rank 从 1 起。
// topK 超出语料大小不是错误，结果只是变短。
func (r *Retriever) Search(ctx context.Context, query string, topK int) ([]RetrievedPassage, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}

	start := time.Now()

	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for 1 text", len(vectors))
	}

	hits, err := r.index.Search(vectors[0], topK)
	if err != nil {
		return nil, fmt.Errorf("index search: %w", err)
	}

	passages := make([]RetrievedPassage, len(hits))
	for i, h := range hits {
		passages[i] = RetrievedPassage{
			Text:     r.index.Text(h.Index),
			Distance: h.Distance,
			Rank:     i + 1,
		}
	}

	applog.Debug("[RAG/Retriever] Search done",
		"query", query,
		"top_k", topK,
		"returned", len(passages),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	return passages, nil
}
