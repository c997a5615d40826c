package router

import (
	"context"
	"fmt"
	"strings"
	"time"

	"hybridrag/internal/domain/intent"
	applog "hybridrag/internal/platform/log"
	"hybridrag/internal/provider"
)

// webMaxResults Live 路径抓取的搜索结果条数
const webMaxResults = 5

// AnswerCache 问答缓存端口（cache-aside）。键为原始问题文本，
// 不做任何归一化；并发同键写入为 last-write-wins。
type AnswerCache interface {
	// Get 命中返回 (value, true)；过期条目不得作为命中返回
	Get(ctx context.Context, key string) (string, bool, error)
	// Set 整体覆盖写入，带 TTL
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Source 缓存命中时的来源标签（如 redis-cache）
	Source() string
}

// StructuredClient 学生结构化数据问答端口
type StructuredClient interface {
	AnswerNaturalLanguage(ctx context.Context, question string) (string, error)
}

// WebSearcher 实时搜索端口
type WebSearcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]string, error)
}

// DomainAnswerer RAG 领域问答端口
type DomainAnswerer interface {
	Answer(ctx context.Context, question string) (string, error)
}

// RouteResult 单次路由结果。每请求生成一次，不持久化。
type RouteResult struct {
	Answer    string `json:"answer"`
	Source    string `json:"source"`
	FromCache bool   `json:"from_cache"`
}

// Router 查询路由器：查缓存 -> 意图分类 -> 四路分发 -> 回写缓存。
// 下游任一策略失败即为本次路由失败，不做跨策略降级重试。
type Router struct {
	cache      AnswerCache
	classifier *intent.Classifier
	students   StructuredClient
	web        WebSearcher
	rag        DomainAnswerer
	llm        provider.LLMProvider
	model      string
}

// Config Router 依赖集合
type Config struct {
	Cache      AnswerCache
	Classifier *intent.Classifier
	Students   StructuredClient
	Web        WebSearcher
	RAG        DomainAnswerer
	LLM        provider.LLMProvider
	Model      string
}

// New 创建路由器
func New(cfg Config) (*Router, error) {
	if cfg.Cache == nil {
		return nil, fmt.Errorf("answer cache is required")
	}
	if cfg.Classifier == nil {
		return nil, fmt.Errorf("intent classifier is required")
	}
	if cfg.Students == nil || cfg.Web == nil || cfg.RAG == nil || cfg.LLM == nil {
		return nil, fmt.Errorf("all four answer strategies are required")
	}
	return &Router{
		cache:      cfg.Cache,
		classifier: cfg.Classifier,
		students:   cfg.Students,
		web:        cfg.Web,
		rag:        cfg.RAG,
		llm:        cfg.LLM,
		model:      cfg.Model,
	}, nil
}

// ttlFor 按意图选择缓存 TTL。
// student: 10 min | web: 5 min | rag: 30 min | general: 15 min
// 未识别的意图兜底 30 min。
func ttlFor(it intent.Intent) time.Duration {
	switch it {
	case intent.Structured:
		return 10 * time.Minute
	case intent.Live:
		return 5 * time.Minute
	case intent.Domain:
		return 30 * time.Minute
	case intent.General:
		return 15 * time.Minute
	default:
		return 30 * time.Minute
	}
}

// Route 处理一个问题：缓存命中直接返回，否则分类并分发到对应策略，
// 成功后以意图 TTL 回写缓存。缓存写失败只记日志，不影响返回。
func (r *Router) Route(ctx context.Context, question string) (*RouteResult, error) {
	if value, ok, err := r.cache.Get(ctx, question); err != nil {
		applog.Warn("[Router] Cache get failed, treating as miss", "error", err)
	} else if ok {
		applog.Info("[Router] Cache HIT", "question", question)
		return &RouteResult{
			Answer:    value,
			Source:    r.cache.Source(),
			FromCache: true,
		}, nil
	}

	it := r.classifier.Classify(question)
	applog.Info("[Router] Intent classified", "question", question, "intent", string(it))

	answer, err := r.dispatch(ctx, it, question)
	if err != nil {
		return nil, fmt.Errorf("%s strategy: %w", it, err)
	}

	ttl := ttlFor(it)
	if err := r.cache.Set(ctx, question, answer, ttl); err != nil {
		applog.Warn("[Router] Cache set failed", "question", question, "error", err)
	} else {
		applog.Info("[Router] Answer cached", "source", string(it), "ttl_seconds", int(ttl.Seconds()))
	}

	return &RouteResult{
		Answer:    answer,
		Source:    string(it),
		FromCache: false,
	}, nil
}

func (r *Router) dispatch(ctx context.Context, it intent.Intent, question string) (string, error) {
	switch it {
	case intent.Structured:
		applog.Info("[Router] Routing to STUDENT database")
		return r.students.AnswerNaturalLanguage(ctx, question)

	case intent.Live:
		applog.Info("[Router] Routing to WEB search")
		results, err := r.web.Search(ctx, question, webMaxResults)
		if err != nil {
			return "", err
		}
		return strings.Join(results, "\n"), nil

	case intent.Domain:
		applog.Info("[Router] Routing to RAG knowledge base")
		return r.rag.Answer(ctx, question)

	default:
		applog.Info("[Router] Routing to GENERAL completion")
		return r.answerGeneral(ctx, question)
	}
}

// answerGeneral 无检索上下文的直接补全
func (r *Router) answerGeneral(ctx context.Context, question string) (string, error) {
	prompt := fmt.Sprintf(`You are a helpful AI assistant. Answer the following question clearly and accurately.

Question: %s

Answer:`, question)

	resp, err := r.llm.Complete(ctx, &provider.CompletionRequest{
		Model: r.model,
		Messages: []provider.Message{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}
