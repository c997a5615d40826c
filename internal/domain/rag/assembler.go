package rag

import (
	"context"
	"fmt"
	"strings"

	applog "hybridrag/internal/platform/log"
	"hybridrag/internal/provider"
)

// assemblerTopK 每次回答检索的段落数
const assemblerTopK = 5

// PassageSearcher Assembler 对检索器的最小依赖
type PassageSearcher interface {
	Search(ctx context.Context, query string, topK int) ([]RetrievedPassage, error)
}

// Assembler 把检索结果拼装成有依据的补全请求（RAG）。
type Assembler struct {
	searcher PassageSearcher
	llm      provider.LLMProvider
	model    string
}

// NewAssembler 创建 RAG 拼装器
func NewAssembler(searcher PassageSearcher, llm provider.LLMProvider, model string) *Assembler {
	return &Assembler{
		searcher: searcher,
		llm:      llm,
		model:    model,
	}
}

// Answer 检索 top 5 段落，按 Rank 顺序用空行拼接为 context，
// 构造只允许引用 context 的提示词并做一次补全。
// 零命中时 context 为空串，提示词照常发送（接受行为，非错误）。
func (a *Assembler) Answer(ctx context.Context, question string) (string, error) {
	passages, err := a.searcher.Search(ctx, question, assemblerTopK)
	if err != nil {
		return "", fmt.Errorf("retrieve context: %w", err)
	}

	docs := make([]string, len(passages))
	for i, p := range passages {
		docs[i] = p.Text
	}
	contextText := strings.Join(docs, "\n\n")

	prompt := buildGroundedPrompt(contextText, question)

	applog.Info("[RAG/Assembler] Answering from retrieved context",
		"question", question,
		"passages", len(passages),
	)

	resp, err := a.llm.Complete(ctx, &provider.CompletionRequest{
		Model: a.model,
		Messages: []provider.Message{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("grounded completion: %w", err)
	}

	return resp.Content, nil
}

// buildGroundedPrompt context 与 question 均原样嵌入
func buildGroundedPrompt(contextText, question string) string {
	return fmt.Sprintf(`
You are a crime data assistant for Los Angeles crime records.
Answer ONLY using the context below. Be specific and cite details from the records.

Context (Top matching crime records):
%s

Question:
%s

Answer:`, contextText, question)
}
