package cache

import (
	"context"
	"encoding/json"
	"time"

	"ai-finagent-be/internal/entity"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "stage_result:"

// RedisCache is the shared, cross-instance result cache.
type RedisCache struct {
	rdb *redis.Client
}

var _ ResultCache = &RedisCache{}

func NewRedisCache(rdb *redis.Client) *RedisCache {
	return &RedisCache{rdb: rdb}
}

func (c *RedisCache) Get(ctx context.Context, fingerprint string) (*entity.StageResult, bool) {
	raw, err := c.rdb.Get(ctx, keyPrefix+fingerprint).Bytes()
	if err != nil {
		// redis.Nil and transport errors both read as a miss; the cache is
		// a latency optimization, never a correctness dependency.
		return nil, false
	}

	var cached cachedResult
	if err := json.Unmarshal(raw, &cached); err != nil {
		return nil, false
	}
	return fromCached(&cached), true
}

func (c *RedisCache) Put(ctx context.Context, fingerprint string, result *entity.StageResult, ttl time.Duration) error {
	raw, err := json.Marshal(toCached(result))
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, keyPrefix+fingerprint, raw, ttl).Err()
}
