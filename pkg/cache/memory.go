package cache

import (
	"context"
	"time"

	"ai-finagent-be/internal/entity"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache is a single-process result cache for development and tests.
type MemoryCache struct {
	cache *gocache.Cache
}

var _ ResultCache = &MemoryCache{}

func NewMemoryCache() *MemoryCache {
	// Purge interval only bounds memory; correctness relies on go-cache
	// checking expiry on read.
	c := gocache.New(1*time.Hour, 10*time.Minute)
	return &MemoryCache{cache: c}
}

func (c *MemoryCache) Get(_ context.Context, fingerprint string) (*entity.StageResult, bool) {
	if x, found := c.cache.Get(fingerprint); found {
		return fromCached(x.(*cachedResult)), true
	}
	return nil, false
}

func (c *MemoryCache) Put(_ context.Context, fingerprint string, result *entity.StageResult, ttl time.Duration) error {
	c.cache.Set(fingerprint, toCached(result), ttl)
	return nil
}
