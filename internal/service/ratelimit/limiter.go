package ratelimit

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

const (
	defaultMaxKeys = 10000
	defaultIdleTTL = 10 * time.Minute
)

// Limiter keeps one token bucket per key. Buckets for idle keys are dropped after
// the idle TTL and the key set is bounded.
type Limiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	buckets *expirable.LRU[string, *rate.Limiter]
}

// New allows rps sustained requests per key with bursts up to burst.
func New(rps float64, burst int) *Limiter {
	return NewWithSize(rps, burst, defaultMaxKeys, defaultIdleTTL)
}

func NewWithSize(rps float64, burst, maxKeys int, idle time.Duration) *Limiter {
	return &Limiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		buckets: expirable.NewLRU[string, *rate.Limiter](maxKeys, nil, idle),
	}
}

func (l *Limiter) bucket(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets.Get(key)
	if !ok {
		b = rate.NewLimiter(l.limit, l.burst)
		l.buckets.Add(key, b)
	}
	return b
}

// Allow reports whether one request for key may proceed now.
func (l *Limiter) Allow(key string) bool {
	return l.bucket(key).Allow()
}

// AllowAt is Allow evaluated at t.
func (l *Limiter) AllowAt(key string, t time.Time) bool {
	return l.bucket(key).AllowN(t, 1)
}

// Keys is the number of tracked buckets.
func (l *Limiter) Keys() int { return l.buckets.Len() }
