package student

import (
	"context"
	"errors"
	"strings"
	"testing"

	"hybridrag/internal/provider"
)

func TestCleanGeneratedSQL(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "plain query",
			raw:  "SELECT * FROM students",
			want: "SELECT * FROM students",
		},
		{
			name: "markdown fenced",
			raw:  "```sql\nSELECT name FROM students\n```",
			want: "SELECT name FROM students",
		},
		{
			name: "bare fences",
			raw:  "```\nSELECT COUNT(*) FROM students\n```",
			want: "SELECT COUNT(*) FROM students",
		},
		{
			name: "sql prefix",
			raw:  "sql SELECT age FROM students",
			want: "SELECT age FROM students",
		},
		{
			name: "uppercase prefix and whitespace",
			raw:  "  SQL\nSELECT course FROM students  ",
			want: "SELECT course FROM students",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cleanGeneratedSQL(tt.raw); got != tt.want {
				t.Fatalf("cleanGeneratedSQL(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestValidateReadOnly(t *testing.T) {
	valid := []string{
		"SELECT * FROM students",
		"select count(*) from students;",
		"WITH c AS (SELECT course FROM students) SELECT * FROM c",
	}
	for _, q := range valid {
		if err := validateReadOnly(q); err != nil {
			t.Fatalf("validateReadOnly(%q) = %v, want nil", q, err)
		}
	}

	invalid := []string{
		"",
		"DELETE FROM students",
		"DROP TABLE students",
		"SELECT * FROM students; DROP TABLE students",
		"UPDATE students SET age = 1",
		"INSERT INTO students VALUES (1)",
		"EXPLAIN SELECT * FROM students", // 非 SELECT/WITH 开头
	}
	for _, q := range invalid {
		if err := validateReadOnly(q); err == nil {
			t.Fatalf("validateReadOnly(%q) = nil, want error", q)
		}
	}
}

// scriptedLLM 按调用顺序返回预设回复
type scriptedLLM struct {
	replies []string
	prompts []string
	err     error
}

func (s *scriptedLLM) Name() string { return "scripted" }

func (s *scriptedLLM) Complete(_ context.Context, req *provider.CompletionRequest) (*provider.CompletionResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	for _, m := range req.Messages {
		s.prompts = append(s.prompts, m.Content)
	}
	if len(s.replies) == 0 {
		return &provider.CompletionResponse{Content: ""}, nil
	}
	reply := s.replies[0]
	s.replies = s.replies[1:]
	return &provider.CompletionResponse{Content: reply}, nil
}

// fakeStore 只实现 RunReadQuery 的假存储
type fakeStore struct {
	Store
	lastQuery string
	result    string
	err       error
}

func (f *fakeStore) RunReadQuery(_ context.Context, query string) (string, error) {
	f.lastQuery = query
	if f.err != nil {
		return "", f.err
	}
	return f.result, nil
}

func TestAnswerNaturalLanguageTwoStageRoundTrip(t *testing.T) {
	store := &fakeStore{result: "{user_id: 1, name: Alice, age: 22, course: Python}"}
	llm := &scriptedLLM{replies: []string{
		"```sql\nSELECT user_id, name, age, course FROM students WHERE course ILIKE '%python%'\n```",
		"One student, Alice (22), is enrolled in Python.",
	}}

	svc := NewService(store, llm, "test-model")
	answer, err := svc.AnswerNaturalLanguage(context.Background(), "Who is enrolled in Python?")
	if err != nil {
		t.Fatalf("AnswerNaturalLanguage failed: %v", err)
	}

	if answer != "One student, Alice (22), is enrolled in Python." {
		t.Fatalf("answer = %q", answer)
	}
	if !strings.HasPrefix(store.lastQuery, "SELECT user_id") {
		t.Fatalf("executed query = %q, want cleaned SELECT", store.lastQuery)
	}
	if len(llm.prompts) != 2 {
		t.Fatalf("llm saw %d prompts, want 2", len(llm.prompts))
	}
	if !strings.Contains(llm.prompts[0], "Table: students") {
		t.Fatal("SQL prompt missing schema info")
	}
	if !strings.Contains(llm.prompts[1], store.result) {
		t.Fatal("answer prompt missing raw query results")
	}
}

// 生成的 SQL 执行失败：结果文本描述错误，仍走成功路径
func TestAnswerNaturalLanguageSQLFailureBecomesString(t *testing.T) {
	store := &fakeStore{err: errors.New(`relation "studnets" does not exist`)}
	llm := &scriptedLLM{replies: []string{
		"SELECT * FROM studnets",
		"I could not find any student data due to a query error.",
	}}

	svc := NewService(store, llm, "test-model")
	answer, err := svc.AnswerNaturalLanguage(context.Background(), "list students")
	if err != nil {
		t.Fatalf("expected success path, got error: %v", err)
	}
	if answer == "" {
		t.Fatal("expected non-empty answer")
	}
	if !strings.Contains(llm.prompts[1], "Error executing query") {
		t.Fatalf("answer prompt should carry the error description, got:\n%s", llm.prompts[1])
	}
}

// 生成了变更语句：拒绝执行，错误描述进入回答阶段
func TestAnswerNaturalLanguageRejectsMutatingSQL(t *testing.T) {
	store := &fakeStore{result: "should never run"}
	llm := &scriptedLLM{replies: []string{
		"DELETE FROM students",
		"I cannot modify student records.",
	}}

	svc := NewService(store, llm, "test-model")
	if _, err := svc.AnswerNaturalLanguage(context.Background(), "remove everyone"); err != nil {
		t.Fatalf("expected success path, got error: %v", err)
	}
	if store.lastQuery != "" {
		t.Fatalf("mutating SQL reached the store: %q", store.lastQuery)
	}
}

// LLM 不可达：协作方不可用，错误向上传播
func TestAnswerNaturalLanguageLLMFailurePropagates(t *testing.T) {
	store := &fakeStore{}
	llm := &scriptedLLM{err: errors.New("connection refused")}

	svc := NewService(store, llm, "test-model")
	if _, err := svc.AnswerNaturalLanguage(context.Background(), "how many students"); err == nil {
		t.Fatal("expected error when completion endpoint is unreachable")
	}
}

func TestUpdateFieldsEmpty(t *testing.T) {
	if !(UpdateFields{}).Empty() {
		t.Fatal("zero UpdateFields should be empty")
	}
	name := "Bob"
	if (UpdateFields{Name: &name}).Empty() {
		t.Fatal("UpdateFields with name should not be empty")
	}
}
