package cache

import (
	"context"
	"sync"
	"time"
)

type entry[V any] struct {
	v   V
	exp time.Time
}

// TTLCache is a small in-process map with per-entry expiry. When maxEntries is
// reached, expired entries are dropped first, then the entry closest to expiry.
type TTLCache[V any] struct {
	mu         sync.RWMutex
	m          map[string]entry[V]
	maxEntries int
	now        func() time.Time
}

func NewTTLCache[V any](maxEntries int) *TTLCache[V] {
	return &TTLCache[V]{m: make(map[string]entry[V]), maxEntries: maxEntries, now: time.Now}
}

// SetClock overrides the expiry clock.
func (c *TTLCache[V]) SetClock(now func() time.Time) { c.now = now }

func (c *TTLCache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()
	var zero V
	if !ok {
		return zero, false
	}
	if !e.exp.IsZero() && c.now().After(e.exp) {
		c.mu.Lock()
		if cur, still := c.m[key]; still && cur.exp.Equal(e.exp) {
			delete(c.m, key)
		}
		c.mu.Unlock()
		return zero, false
	}
	return e.v, true
}

func (c *TTLCache[V]) Set(key string, v V, ttl time.Duration) {
	now := c.now()
	var exp time.Time
	if ttl > 0 {
		exp = now.Add(ttl)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.m[key]; !exists && c.maxEntries > 0 && len(c.m) >= c.maxEntries {
		c.evictLocked(now)
	}
	c.m[key] = entry[V]{v: v, exp: exp}
}

func (c *TTLCache[V]) evictLocked(now time.Time) {
	victim := ""
	var soonest time.Time
	for k, e := range c.m {
		if !e.exp.IsZero() && now.After(e.exp) {
			delete(c.m, k)
			continue
		}
		if !e.exp.IsZero() && (victim == "" || e.exp.Before(soonest)) {
			victim, soonest = k, e.exp
		}
	}
	if len(c.m) < c.maxEntries {
		return
	}
	if victim == "" {
		for k := range c.m {
			victim = k
			break
		}
	}
	delete(c.m, victim)
}

func (c *TTLCache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

// BytesTTLCache adapts TTLCache to BytesCache for single-instance deployments.
type BytesTTLCache struct {
	*TTLCache[[]byte]
}

func NewBytesTTLCache(maxEntries int) *BytesTTLCache {
	return &BytesTTLCache{TTLCache: NewTTLCache[[]byte](maxEntries)}
}

func (c *BytesTTLCache) GetBytes(_ context.Context, key string) ([]byte, bool, error) {
	b, ok := c.Get(key)
	return b, ok, nil
}

func (c *BytesTTLCache) SetBytes(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.Set(key, value, ttl)
	return nil
}
