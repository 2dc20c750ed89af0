package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const rootCacheKey = "talos:root"

// RootCache is a read-through cache for the hot GET /root path. It is
// invalidated on every successful ingest so a stale root is never served
// for longer than the time between an Ingest call and its own cache
// write, and falls back silently to the caller's compute path on any
// Redis error — the root cache is a latency optimization, never a
// correctness dependency.
type RootCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRootCache wraps an existing Redis client.
func NewRootCache(client *redis.Client, ttl time.Duration) *RootCache {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &RootCache{client: client, ttl: ttl}
}

// Get returns the cached root and true on a hit, or "", false on a miss or
// any Redis error.
func (c *RootCache) Get(ctx context.Context) (string, bool) {
	if c == nil || c.client == nil {
		return "", false
	}
	val, err := c.client.Get(ctx, rootCacheKey).Result()
	if err != nil {
		return "", false
	}
	return val, true
}

// Set stores the current root with the cache's TTL.
func (c *RootCache) Set(ctx context.Context, root string) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Set(ctx, rootCacheKey, root, c.ttl).Err()
}

// Invalidate drops the cached root. Called after every successful ingest
// so readers never observe a root older than the event that was just
// accepted.
func (c *RootCache) Invalidate(ctx context.Context) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Del(ctx, rootCacheKey).Err()
}
