package intent

import (
	"testing"
	"time"
)

// fixedClock 固定在 2024-03-15，避免年份/月份 token 随日期漂移
func fixedClock() time.Time {
	return time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)
}

func newTestClassifier() *Classifier {
	c := NewClassifier()
	c.Now = fixedClock
	return c
}

func TestClassifyFourWay(t *testing.T) {
	c := newTestClassifier()

	tests := []struct {
		name     string
		question string
		want     Intent
	}{
		{
			name:     "student enrollment question",
			question: "How many students are enrolled in Python?",
			want:     Structured,
		},
		{
			name:     "weather today",
			question: "What is the weather today in Los Angeles?",
			want:     Live,
		},
		{
			name:     "robbery summary",
			question: "Summarize robbery incidents near downtown",
			want:     Domain,
		},
		{
			name:     "general knowledge",
			question: "What is the capital of France?",
			want:     General,
		},
		{
			name:     "crud phrase add student",
			question: "please add student Bob aged 21",
			want:     Structured,
		},
		{
			name:     "current year token",
			question: "top movies of 2024",
			want:     Live,
		},
		{
			name:     "current month name",
			question: "events in march",
			want:     Live,
		},
		{
			name:     "future tense will",
			question: "who will win the cup",
			want:     Live,
		},
		{
			name:     "crime keyword",
			question: "arrest statistics by area",
			want:     Domain,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Classify(tt.question); got != tt.want {
				t.Fatalf("Classify(%q) = %q, want %q", tt.question, got, tt.want)
			}
		})
	}
}

// 优先级不变式：含学生关键词的问题总是 Structured，
// 即便同时命中 Domain 或 Live 关键词。
func TestClassifyPriorityStructuredWins(t *testing.T) {
	c := newTestClassifier()

	tests := []string{
		"how many students were victims of theft",       // student + domain
		"list students enrolled today",                  // student + live
		"which course covers crime investigation basics", // course + crime
	}

	for _, q := range tests {
		if got := c.Classify(q); got != Structured {
			t.Fatalf("Classify(%q) = %q, want %q", q, got, Structured)
		}
	}
}

// Live 优先于 Domain
func TestClassifyLiveBeatsDomain(t *testing.T) {
	c := newTestClassifier()

	q := "latest police report"
	if got := c.Classify(q); got != Live {
		t.Fatalf("Classify(%q) = %q, want %q", q, got, Live)
	}
}

// 兜底分支：无任何词典命中且无将来时模式时必得 General
func TestClassifyDefaultsToGeneral(t *testing.T) {
	c := newTestClassifier()

	tests := []string{
		"Explain photosynthesis",
		"Why is the sky blue?",
		"",
	}

	for _, q := range tests {
		if got := c.Classify(q); got != General {
			t.Fatalf("Classify(%q) = %q, want %q", q, got, General)
		}
	}
}

// 除将来时正则外，关键词匹配是子串包含而非分词匹配。
// 保留原始行为：newspaper 包含 news，被判为 Live。
func TestClassifySubstringContainment(t *testing.T) {
	c := newTestClassifier()

	if got := c.Classify("history of the newspaper industry"); got != Live {
		t.Fatalf("substring containment: got %q, want %q", got, Live)
	}

	// classroom 包含 class -> Structured
	if got := c.Classify("ideal classroom temperature"); got != Structured {
		t.Fatalf("substring containment: got %q, want %q", got, Structured)
	}
}

// 将来时检查使用词边界：will 命中，willow 不命中
func TestClassifyFutureTenseWordBoundary(t *testing.T) {
	c := newTestClassifier()

	if got := c.Classify("it will rain"); got != Live {
		t.Fatalf("word boundary: %q should be Live, got %q", "it will rain", got)
	}
	if got := c.Classify("describe a willow tree"); got != General {
		t.Fatalf("word boundary: %q should be General, got %q", "describe a willow tree", got)
	}
}

// 大小写不敏感（匹配前统一转小写）
func TestClassifyCaseInsensitive(t *testing.T) {
	c := newTestClassifier()

	if got := c.Classify("HOW MANY STUDENTS?"); got != Structured {
		t.Fatalf("case insensitive: got %q, want %q", got, Structured)
	}
}
