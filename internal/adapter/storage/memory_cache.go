package storage

import (
	"context"
	"sync"
	"time"
)

// MemoryCache is the in-process stand-in for RedisAdapter when no Redis
// address is configured.
type MemoryCache struct {
	mu   sync.Mutex
	keys map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = idempotencyKeyTTL
	}
	return &MemoryCache{keys: make(map[string]time.Time), ttl: ttl, now: time.Now}
}

func (c *MemoryCache) SetIdempotency(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if exp, ok := c.keys[key]; ok && now.Before(exp) {
		return false, nil
	}
	c.keys[key] = now.Add(c.ttl)
	return true, nil
}

func (c *MemoryCache) ReleaseIdempotency(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.keys, key)
	c.mu.Unlock()
	return nil
}
