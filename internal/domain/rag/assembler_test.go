package rag

import (
	"context"
	"strings"
	"testing"

	"hybridrag/internal/provider"
)

type stubSearcher struct {
	passages []RetrievedPassage
	err      error
}

func (s *stubSearcher) Search(_ context.Context, _ string, _ int) ([]RetrievedPassage, error) {
	return s.passages, s.err
}

type recordingLLM struct {
	calls   int
	prompts []string
	reply   string
}

func (r *recordingLLM) Name() string { return "recording" }

func (r *recordingLLM) Complete(_ context.Context, req *provider.CompletionRequest) (*provider.CompletionResponse, error) {
	r.calls++
	for _, m := range req.Messages {
		r.prompts = append(r.prompts, m.Content)
	}
	return &provider.CompletionResponse{Content: r.reply}, nil
}

func TestAssemblerJoinsPassagesInRankOrder(t *testing.T) {
	searcher := &stubSearcher{
		passages: []RetrievedPassage{
			{Text: "record one", Distance: 0.1, Rank: 1},
			{Text: "record two", Distance: 0.5, Rank: 2},
		},
	}
	llm := &recordingLLM{reply: "grounded answer"}
	a := NewAssembler(searcher, llm, "test-model")

	answer, err := a.Answer(context.Background(), "what happened downtown?")
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if answer != "grounded answer" {
		t.Fatalf("answer = %q, want LLM output unmodified", answer)
	}

	if llm.calls != 1 {
		t.Fatalf("llm called %d times, want 1", llm.calls)
	}
	prompt := llm.prompts[0]
	if !strings.Contains(prompt, "record one\n\nrecord two") {
		t.Fatalf("prompt missing blank-line-joined context:\n%s", prompt)
	}
	if !strings.Contains(prompt, "what happened downtown?") {
		t.Fatalf("prompt missing verbatim question:\n%s", prompt)
	}
	if !strings.Contains(prompt, "Answer ONLY using the context below") {
		t.Fatalf("prompt missing grounding instruction:\n%s", prompt)
	}
}

// 零命中时仍发送一次补全请求，context 段为空，不是错误
func TestAssemblerZeroPassages(t *testing.T) {
	searcher := &stubSearcher{passages: nil}
	llm := &recordingLLM{reply: "best effort"}
	a := NewAssembler(searcher, llm, "test-model")

	answer, err := a.Answer(context.Background(), "anything?")
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if answer != "best effort" {
		t.Fatalf("answer = %q", answer)
	}
	if llm.calls != 1 {
		t.Fatalf("llm called %d times, want exactly 1", llm.calls)
	}

	prompt := llm.prompts[0]
	if !strings.Contains(prompt, "Context (Top matching crime records):\n\n\nQuestion:") {
		t.Fatalf("expected empty context section, got:\n%s", prompt)
	}
}
