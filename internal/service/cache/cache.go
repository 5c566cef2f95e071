package cache

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"
)

// BytesCache is a minimal cache API storing raw bytes with TTL.
type BytesCache interface {
	GetBytes(ctx context.Context, key string) (b []byte, ok bool, err error)
	SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// ResponseCache serves serialized responses from a BytesCache and coalesces
// concurrent fills of the same key. Store failures fall through to fill.
type ResponseCache struct {
	store BytesCache
	ttl   time.Duration
	group singleflight.Group
}

func NewResponseCache(store BytesCache, ttl time.Duration) *ResponseCache {
	return &ResponseCache{store: store, ttl: ttl}
}

// Remember returns cached bytes for key, or the result of fill. hit reports a cache hit.
func (c *ResponseCache) Remember(ctx context.Context, key string, fill func(ctx context.Context) ([]byte, error)) (b []byte, hit bool, err error) {
	if c == nil || c.store == nil {
		b, err = fill(ctx)
		return b, false, err
	}
	if b, ok, gerr := c.store.GetBytes(ctx, key); gerr == nil && ok {
		return b, true, nil
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		out, ferr := fill(ctx)
		if ferr != nil {
			return nil, ferr
		}
		_ = c.store.SetBytes(ctx, key, out, c.ttl)
		return out, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.([]byte), false, nil
}
