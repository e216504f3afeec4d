// Package memory implements the agent's Redis-backed summary cache.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/synapsehq/synapse/pkg/types"
)

// redisCmd is the slice of the go-redis client the cache uses. Narrow so
// tests can fake it.
type redisCmd interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// SummaryCache stores thread summaries in Redis with a fixed TTL. Entries
// are created on miss, read on hit, and removed only by TTL expiry or
// explicit invalidation, never mutated in place.
type SummaryCache struct {
	rdb redisCmd
	ttl time.Duration
}

type CacheConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// NewSummaryCache connects to the Redis instance at cfg.Addr. The connection
// is lazy; the first operation surfaces connectivity errors.
func NewSummaryCache(cfg CacheConfig) *SummaryCache {
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &SummaryCache{rdb: rdb, ttl: cfg.TTL}
}

func summaryKey(channel, threadTS string) string {
	return fmt.Sprintf("thread_summary:%s:%s", channel, threadTS)
}

// GetThreadSummary returns the cached summary, or (nil, nil) when absent.
func (c *SummaryCache) GetThreadSummary(ctx context.Context, channel, threadTS string) (*types.ThreadSummary, error) {
	val, err := c.rdb.Get(ctx, summaryKey(channel, threadTS)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}

	var summary types.ThreadSummary
	if err := json.Unmarshal([]byte(val), &summary); err != nil {
		return nil, fmt.Errorf("cache decode: %w", err)
	}
	return &summary, nil
}

// SetThreadSummary stores the summary under the thread's key with the
// configured TTL. Two concurrent misses may both compute and both write;
// each SET is atomic and the last write wins.
func (c *SummaryCache) SetThreadSummary(ctx context.Context, channel, threadTS string, summary *types.ThreadSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	if err := c.rdb.Set(ctx, summaryKey(channel, threadTS), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// InvalidateThreadSummary removes the cached summary for a thread.
func (c *SummaryCache) InvalidateThreadSummary(ctx context.Context, channel, threadTS string) error {
	if err := c.rdb.Del(ctx, summaryKey(channel, threadTS)).Err(); err != nil {
		return fmt.Errorf("cache del: %w", err)
	}
	return nil
}
