package intent

import (
	"regexp"
	"strings"
	"time"
)

// Intent 问题意图分类结果，决定由哪个后端回答。
type Intent string

const (
	// Structured 学生结构化数据问题，走 PostgreSQL
	Structured Intent = "student"
	// Live 实时信息问题，走 Web 搜索
	Live Intent = "web"
	// Domain 犯罪领域问题，走 RAG 知识库
	Domain Intent = "rag"
	// General 其余问题，直接 LLM 补全
	General Intent = "general"
)

// 学生数据关键词
var studentKeywords = []string{
	"student", "students",
	"enrollment", "enrolled",
	"course", "courses",
	"class", "classes",
	"grade", "grades", "gpa",
	"learner", "learners",
	"pupil", "pupils",
	"undergraduate", "graduate",
	"major", "minor",
}

// 学生数据操作短语（CRUD 意图）
var studentOperations = []string{
	"add student", "create student", "new student",
	"register student", "enroll student",
	"delete student", "remove student",
	"update student", "modify student", "edit student",
	"list student", "show student", "find student",
	"search student", "get student",
	"how many student", "count student",
	"average age",
	"who is enrolled", "who is taking", "who studies",
}

// 时效性关键词（不含随日期变化的年份/月份，那两项在匹配时注入）
var temporalKeywords = []string{
	"today", "now", "current", "latest", "recent",
	"yesterday", "this week", "this month", "this year",
	"trending", "breaking", "live", "real-time",
}

// 通常需要实时数据的主题
var liveTopics = []string{
	"news", "weather", "stock", "price",
	"election", "covid", "pandemic",
	"sports score", "match result",
	"currency rate", "exchange rate",
	"update",
}

// 将来时/预测类模式。仅这里使用词边界匹配，其余关键词为子串包含。
var futurePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bwill\b`),
	regexp.MustCompile(`\bgoing to\b`),
	regexp.MustCompile(`\bforecast\b`),
	regexp.MustCompile(`\bpredict\b`),
	regexp.MustCompile(`\bexpect\b`),
}

// 犯罪领域关键词
var domainKeywords = []string{
	"crime", "criminal", "incident", "offense",
	"arrest", "robbery", "theft", "assault",
	"burglary", "homicide", "violation",
	"suspect", "victim", "report", "police",
	"investigation", "felony", "misdemeanor",
	"los angeles",
}

// rule 意图规则：按优先级求值，首个命中即终止。
type rule struct {
	name   string
	intent Intent
	match  func(c *Classifier, lower string) bool
}

// Classifier 基于有序规则表的意图分类器。
// 分类是全函数：任何输入都会落入四个意图之一（General 兜底）。
// Live 规则把当前年份和月份名作为可匹配 token，因此同一文本在
// 不同日期可能得到不同结果，这是已接受的非确定性。
type Classifier struct {
	// Now 供测试注入固定时钟，零值时使用 time.Now。
	Now func() time.Time

	rules []rule
}

// NewClassifier 创建分类器。规则顺序即优先级：
// Structured > Live > Domain > General（设计决策，键词重叠时不计数）。
func NewClassifier() *Classifier {
	c := &Classifier{}
	c.rules = []rule{
		{name: "structured", intent: Structured, match: (*Classifier).matchStructured},
		{name: "live", intent: Live, match: (*Classifier).matchLive},
		{name: "domain", intent: Domain, match: (*Classifier).matchDomain},
	}
	return c
}

// Classify 对问题做四路意图分类。纯函数，无 I/O。
// 不对输入做任何归一化，仅在匹配时转小写。
func (c *Classifier) Classify(question string) Intent {
	lower := strings.ToLower(question)

	for _, r := range c.rules {
		if r.match(c, lower) {
			return r.intent
		}
	}
	return General
}

func (c *Classifier) matchStructured(lower string) bool {
	return containsAny(lower, studentKeywords) || containsAny(lower, studentOperations)
}

func (c *Classifier) matchLive(lower string) bool {
	if containsAny(lower, temporalKeywords) {
		return true
	}

	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	t := now()
	year := t.Format("2006")
	month := strings.ToLower(t.Month().String())
	if strings.Contains(lower, year) || strings.Contains(lower, month) {
		return true
	}

	if containsAny(lower, liveTopics) {
		return true
	}

	for _, p := range futurePatterns {
		if p.MatchString(lower) {
			return true
		}
	}
	return false
}

func (c *Classifier) matchDomain(lower string) bool {
	return containsAny(lower, domainKeywords)
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
