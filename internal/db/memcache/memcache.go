package memcache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value     string
	expiresAt time.Time
}

// AnswerCache 进程内回答缓存，Redis 不可用时的降级实现。
// 过期条目在 Get 时惰性清除，不跑后台清理协程。
type AnswerCache struct {
	mu    sync.Mutex
	items map[string]entry
	now   func() time.Time
}

// NewAnswerCache 创建内存回答缓存
func NewAnswerCache() *AnswerCache {
	return &AnswerCache{
		items: make(map[string]entry),
		now:   time.Now,
	}
}

// Get 查询缓存，已过期条目视为未命中并删除
func (c *AnswerCache) Get(_ context.Context, question string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[question]
	if !ok {
		return "", false, nil
	}
	if c.now().After(e.expiresAt) {
		delete(c.items, question)
		return "", false, nil
	}
	return e.value, true, nil
}

// Set 写入缓存
func (c *AnswerCache) Set(_ context.Context, question, answer string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[question] = entry{
		value:     answer,
		expiresAt: c.now().Add(ttl),
	}
	return nil
}

// Source 缓存命中时上报的来源标签
func (c *AnswerCache) Source() string {
	return "memory-cache"
}
