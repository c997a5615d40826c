package redisdb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// answerKeyPrefix 回答缓存键前缀
const answerKeyPrefix = "answer:"

// AnswerCache Redis 回答缓存。键为原始问题文本，不做归一化，
// 大小写或空白不同的问题各占一个缓存槽。
type AnswerCache struct {
	client *redis.Client
}

// NewAnswerCache 创建 Redis 回答缓存
func NewAnswerCache(client *redis.Client) *AnswerCache {
	return &AnswerCache{client: client}
}

// Get 查询缓存。未命中返回 ("", false, nil)。
func (c *AnswerCache) Get(ctx context.Context, question string) (string, bool, error) {
	val, err := c.client.Get(ctx, answerKeyPrefix+question).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	return val, true, nil
}

// Set 写入缓存并设置过期时间
func (c *AnswerCache) Set(ctx context.Context, question, answer string, ttl time.Duration) error {
	if err := c.client.Set(ctx, answerKeyPrefix+question, answer, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Source 缓存命中时上报的来源标签
func (c *AnswerCache) Source() string {
	return "redis-cache"
}

// Ping 连通性检查
func (c *AnswerCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
