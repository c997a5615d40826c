package rag

import (
	"context"
	"testing"
)

// stubEmbedder 维度固定的假 Embedder，按字符长度生成可预测向量
type stubEmbedder struct {
	dims  int
	calls int
}

func (s *stubEmbedder) Dims() int { return s.dims }

func (s *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	s.calls++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, s.dims)
		v[0] = float32(len(t))
		out[i] = v
	}
	return out, nil
}

func newTestRetriever(t *testing.T) (*Retriever, *stubEmbedder) {
	t.Helper()

	// 向量首维分别为 0/5/20，其余为 0
	vecPath, txtPath := writeTestIndex(t,
		[][]float32{{0, 0}, {5, 0}, {20, 0}},
		[]string{"closest to empty", "five-ish", "twenty-ish"},
	)
	ix, err := LoadFlatIndex(vecPath, txtPath)
	if err != nil {
		t.Fatalf("LoadFlatIndex failed: %v", err)
	}

	emb := &stubEmbedder{dims: 2}
	r, err := NewRetriever(emb, ix)
	if err != nil {
		t.Fatalf("NewRetriever failed: %v", err)
	}
	return r, emb
}

func TestRetrieverSearchRanksAscending(t *testing.T) {
	r, emb := newTestRetriever(t)

	// query 长度 6 -> 向量 {6,0}，最近为 five-ish
	passages, err := r.Search(context.Background(), "abcdef", 3)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if len(passages) != 3 {
		t.Fatalf("got %d passages, want 3", len(passages))
	}
	if passages[0].Text != "five-ish" {
		t.Fatalf("nearest passage = %q, want five-ish", passages[0].Text)
	}
	for i, p := range passages {
		if p.Rank != i+1 {
			t.Fatalf("passage %d rank = %d, want %d", i, p.Rank, i+1)
		}
		if p.Distance < 0 {
			t.Fatalf("negative distance: %v", p.Distance)
		}
		if i > 0 && p.Distance < passages[i-1].Distance {
			t.Fatalf("distances not non-decreasing: %v", passages)
		}
	}

	// Embedder 每次 Search 恰好调用一次
	if emb.calls != 1 {
		t.Fatalf("embedder called %d times, want 1", emb.calls)
	}
}

func TestRetrieverTopKBeyondCorpus(t *testing.T) {
	r, _ := newTestRetriever(t)

	passages, err := r.Search(context.Background(), "q", 50)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(passages) != 3 {
		t.Fatalf("got %d passages, want corpus size 3", len(passages))
	}
}

func TestRetrieverRejectsNonPositiveTopK(t *testing.T) {
	r, _ := newTestRetriever(t)

	if _, err := r.Search(context.Background(), "q", 0); err == nil {
		t.Fatal("expected error for topK=0")
	}
}

func TestNewRetrieverDimsMismatch(t *testing.T) {
	vecPath, txtPath := writeTestIndex(t,
		[][]float32{{1, 2, 3}},
		[]string{"a"},
	)
	ix, err := LoadFlatIndex(vecPath, txtPath)
	if err != nil {
		t.Fatalf("LoadFlatIndex failed: %v", err)
	}

	if _, err := NewRetriever(&stubEmbedder{dims: 2}, ix); err == nil {
		t.Fatal("expected dims mismatch error at construction")
	}
}
