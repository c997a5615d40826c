package student

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	applog "hybridrag/internal/platform/log"
	"hybridrag/internal/provider"
)

// schemaInfo 提供给 LLM 的表结构描述
const schemaInfo = `Database Schema:
Table: students
Columns:
- user_id (INTEGER, PRIMARY KEY)
- name (VARCHAR)
- age (INTEGER)
- course (VARCHAR)`

// Service 学生数据自然语言问答服务。
// 两段式 LLM 往返：问题 -> SQL，查询结果 -> 自然语言回答。
// 生成的 SQL 被限制为只读；执行失败以描述性字符串经成功路径返回，
// 不向上抛错（契约保证返回字符串）。
type Service struct {
	store Store
	llm   provider.LLMProvider
	model string
}

// NewService 创建学生问答服务
func NewService(store Store, llm provider.LLMProvider, model string) *Service {
	return &Service{
		store: store,
		llm:   llm,
		model: model,
	}
}

// Store 返回底层存储（CRUD API 使用）
func (s *Service) Store() Store {
	return s.store
}

// AnswerNaturalLanguage 回答关于学生数据的自然语言问题。
func (s *Service) AnswerNaturalLanguage(ctx context.Context, question string) (string, error) {
	sqlQuery, err := s.generateSQL(ctx, question)
	if err != nil {
		// LLM 不可达属于协作方不可用，向上传播
		return "", fmt.Errorf("generate SQL: %w", err)
	}

	applog.Info("[Student] Generated SQL", "question", question, "sql", sqlQuery)

	rawResults := s.executeGenerated(ctx, sqlQuery)

	answer, err := s.formatAnswer(ctx, question, rawResults)
	if err != nil {
		return "", fmt.Errorf("format answer: %w", err)
	}
	return answer, nil
}

func (s *Service) generateSQL(ctx context.Context, question string) (string, error) {
	prompt := fmt.Sprintf(`You are a SQL expert. Convert the following natural language question into a PostgreSQL query.

%s

Rules:
1. Return ONLY the SQL query, nothing else
2. Use proper PostgreSQL syntax
3. For counting, use COUNT(*)
4. For filtering by course, use ILIKE for case-insensitive matching
5. Always use safe queries (SELECT only, no DELETE/DROP/etc.)
6. If asking for "students", select: user_id, name, age, course

Question: %s

SQL Query:`, schemaInfo, question)

	resp, err := s.llm.Complete(ctx, &provider.CompletionRequest{
		Model: s.model,
		Messages: []provider.Message{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", err
	}

	return cleanGeneratedSQL(resp.Content), nil
}

// executeGenerated 校验并执行生成的 SQL。
// 非法或执行失败都转为描述性结果文本，走正常成功路径。
func (s *Service) executeGenerated(ctx context.Context, sqlQuery string) string {
	if err := validateReadOnly(sqlQuery); err != nil {
		applog.Warn("[Student] Generated SQL rejected", "sql", sqlQuery, "error", err)
		return fmt.Sprintf("Error executing query: %v", err)
	}

	results, err := s.store.RunReadQuery(ctx, sqlQuery)
	if err != nil {
		applog.Error("[Student] SQL execution failed", "sql", sqlQuery, "error", err)
		return fmt.Sprintf("Error executing query: %v", err)
	}
	return results
}

func (s *Service) formatAnswer(ctx context.Context, question, rawResults string) (string, error) {
	prompt := fmt.Sprintf(`Based on the database query results below, provide a clear, natural language answer to the question.

Question: %s

Query Results:
%s

Provide a concise, helpful answer:`, question, rawResults)

	resp, err := s.llm.Complete(ctx, &provider.CompletionRequest{
		Model: s.model,
		Messages: []provider.Message{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// ── 生成 SQL 的清洗与只读校验 ─────────────────────────────────

// cleanGeneratedSQL 去掉 LLM 常见的包装：markdown 代码块围栏
// 和开头的 "sql" 前缀。
func cleanGeneratedSQL(raw string) string {
	sqlQuery := strings.TrimSpace(raw)

	if strings.HasPrefix(sqlQuery, "```") {
		var kept []string
		for _, line := range strings.Split(sqlQuery, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "```") {
				continue
			}
			kept = append(kept, line)
		}
		sqlQuery = strings.TrimSpace(strings.Join(kept, "\n"))
	}

	if len(sqlQuery) >= 3 && strings.EqualFold(sqlQuery[:3], "sql") {
		sqlQuery = strings.TrimSpace(sqlQuery[3:])
	}

	return sqlQuery
}

var forbiddenSQL = regexp.MustCompile(`(?i)\b(insert|update|delete|drop|alter|truncate|create|grant|revoke)\b`)

// validateReadOnly 生成的查询必须是单条 SELECT，不得包含变更操作。
func validateReadOnly(sqlQuery string) error {
	trimmed := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(sqlQuery), ";"))
	if trimmed == "" {
		return fmt.Errorf("empty query")
	}
	upper := strings.ToUpper(trimmed)
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return fmt.Errorf("only SELECT queries are allowed")
	}
	if strings.Contains(trimmed, ";") {
		return fmt.Errorf("multiple statements are not allowed")
	}
	if m := forbiddenSQL.FindString(trimmed); m != "" {
		return fmt.Errorf("mutating keyword %q is not allowed", strings.ToUpper(m))
	}
	return nil
}
