package cache

import (
	"sync"
	"time"

	"TaskStream/internal/domain/errs"
	"TaskStream/internal/domain/models"
	domrepo "TaskStream/internal/domain/repository"
	applogger "TaskStream/pkg/logger"
	"TaskStream/pkg/metrics"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultMaxEntries = 1000
	DefaultTTL        = time.Hour
)

// PredictionCacheOption configures PredictionCache.
type PredictionCacheOption func(*PredictionCacheConfig)

// PredictionCacheConfig holds cache settings.
type PredictionCacheConfig struct {
	MaxEntries    int
	DefaultTTL    time.Duration
	SweepInterval time.Duration
	Now           func() time.Time
	Logger        *applogger.Logger
	Metrics       domrepo.Metrics
}

func WithMaxEntries(n int) PredictionCacheOption {
	return func(c *PredictionCacheConfig) { c.MaxEntries = n }
}

func WithDefaultTTL(ttl time.Duration) PredictionCacheOption {
	return func(c *PredictionCacheConfig) { c.DefaultTTL = ttl }
}

// WithSweepInterval starts a background sweep of expired entries. 0 disables it.
func WithSweepInterval(d time.Duration) PredictionCacheOption {
	return func(c *PredictionCacheConfig) { c.SweepInterval = d }
}

// WithNow overrides the clock used for expiry.
func WithNow(now func() time.Time) PredictionCacheOption {
	return func(c *PredictionCacheConfig) { c.Now = now }
}

func WithCacheLogger(l *applogger.Logger) PredictionCacheOption {
	return func(c *PredictionCacheConfig) { c.Logger = l }
}

func WithCacheMetrics(m domrepo.Metrics) PredictionCacheOption {
	return func(c *PredictionCacheConfig) { c.Metrics = m }
}

// CacheStats is a point-in-time snapshot.
type CacheStats struct {
	Hits      uint64  `json:"hits"`
	Misses    uint64  `json:"misses"`
	Evictions uint64  `json:"evictions"`
	Expired   uint64  `json:"expired"`
	Size      int     `json:"size"`
	HitRate   float64 `json:"hit_rate"`
}

// PredictionCache memoizes forecast results by key with TTL expiry, a bounded LRU
// and single-flight coalescing of concurrent misses.
type PredictionCache struct {
	cfg   PredictionCacheConfig
	mu    sync.Mutex
	lru   *lru.Cache[string, models.CacheEntry]
	group singleflight.Group

	hits, misses, evictions, expired uint64
	closed                           bool

	stop chan struct{}
	done chan struct{}
}

func NewPredictionCache(opts ...PredictionCacheOption) (*PredictionCache, error) {
	cfg := PredictionCacheConfig{
		MaxEntries: DefaultMaxEntries,
		DefaultTTL: DefaultTTL,
		Now:        time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.MaxEntries <= 0 {
		return nil, errs.Configuration("cache.NewPredictionCache", "max entries must be positive, got %d", cfg.MaxEntries)
	}
	if cfg.DefaultTTL <= 0 {
		return nil, errs.Configuration("cache.NewPredictionCache", "default ttl must be positive, got %s", cfg.DefaultTTL)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = applogger.Nop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Nop{}
	}
	l, err := lru.New[string, models.CacheEntry](cfg.MaxEntries)
	if err != nil {
		return nil, errs.E(errs.KindConfiguration, "cache.NewPredictionCache", err)
	}

	c := &PredictionCache{cfg: cfg, lru: l}
	if cfg.SweepInterval > 0 {
		c.stop = make(chan struct{})
		c.done = make(chan struct{})
		go c.sweep(cfg.SweepInterval)
	}
	return c, nil
}

// recoverCache turns a panic in cache internals into a CacheError.
func recoverCache(op string, err *error) {
	if r := recover(); r != nil {
		*err = errs.Cache(op, "recovered panic: %v", r)
	}
}

// Get returns the unexpired entry for key. Expired entries are removed and reported absent.
func (c *PredictionCache) Get(key string) (entry models.CacheEntry, ok bool, err error) {
	defer recoverCache("cache.Get", &err)
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok, err = c.lookupLocked(key)
	if err != nil {
		return models.CacheEntry{}, false, err
	}
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return entry, ok, nil
}

func (c *PredictionCache) lookupLocked(key string) (models.CacheEntry, bool, error) {
	if c.closed {
		return models.CacheEntry{}, false, errs.Cache("cache.lookup", "cache is closed")
	}
	e, ok := c.lru.Get(key)
	if !ok {
		return models.CacheEntry{}, false, nil
	}
	if e.Expired(c.cfg.Now()) {
		c.lru.Remove(key)
		c.expired++
		return models.CacheEntry{}, false, nil
	}
	return e, true, nil
}

// Put stores result under key. ttl <= 0 uses the default TTL.
func (c *PredictionCache) Put(key string, result any, ttl time.Duration) (err error) {
	defer recoverCache("cache.Put", &err)
	if ttl <= 0 {
		ttl = c.cfg.DefaultTTL
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errs.Cache("cache.Put", "cache is closed")
	}
	entry := models.CacheEntry{Key: key, Result: result, CreatedAt: c.cfg.Now(), TTL: ttl}
	if evicted := c.lru.Add(key, entry); evicted {
		c.evictions++
	}
	return nil
}

type flightResult struct {
	value any
	hit   bool
}

// GetOrCompute returns the cached value for key or runs fn to produce it. Concurrent
// misses on the same key share one fn call. Internal cache failures are logged and
// bypassed, so the returned error is always fn's.
//
// fn runs to completion even if every waiting caller has gone away.
func (c *PredictionCache) GetOrCompute(op, key string, ttl time.Duration, fn func() (any, error)) (any, bool, error) {
	if e, ok, err := c.Get(key); err == nil && ok {
		c.cfg.Metrics.RecordCacheHit(op)
		return e.Result, true, nil
	} else if err != nil {
		c.bypass(op, key, err)
		v, ferr := fn()
		return v, false, ferr
	}
	return c.fill(op, key, ttl, fn)
}

// fill runs the single-flight miss path. A flight that finds the entry already
// stored turns the caller's recorded miss into a hit.
func (c *PredictionCache) fill(op, key string, ttl time.Duration, fn func() (any, error)) (any, bool, error) {
	v, err, _ := c.group.Do(key, func() (any, error) {
		// A caller that missed just after the previous flight finished lands here.
		if e, ok := c.peek(key); ok {
			return flightResult{value: e.Result, hit: true}, nil
		}
		res, err := fn()
		if err != nil {
			return nil, err
		}
		if perr := c.Put(key, res, ttl); perr != nil {
			c.bypass(op, key, perr)
		}
		return flightResult{value: res}, nil
	})
	if err != nil {
		c.cfg.Metrics.RecordCacheMiss(op)
		return nil, false, err
	}
	fr := v.(flightResult)
	if fr.hit {
		c.lateHit()
		c.cfg.Metrics.RecordCacheHit(op)
	} else {
		c.cfg.Metrics.RecordCacheMiss(op)
	}
	return fr.value, fr.hit, nil
}

func (c *PredictionCache) lateHit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.misses > 0 {
		c.misses--
	}
	c.hits++
}

func (c *PredictionCache) peek(key string) (e models.CacheEntry, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok, _ = c.lookupLocked(key)
	return e, ok
}

func (c *PredictionCache) bypass(op, key string, err error) {
	c.cfg.Metrics.RecordError(errs.KindCache.String())
	c.cfg.Logger.Warn("prediction cache bypassed",
		applogger.String("op", op),
		applogger.String("key", key),
		applogger.Error(err),
	)
}

// Delete drops key if present.
func (c *PredictionCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(key)
}

// Len counts entries held, including expired ones not yet swept.
func (c *PredictionCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// CleanupExpired removes expired entries and returns how many were dropped.
func (c *PredictionCache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.cfg.Now()
	removed := 0
	for _, k := range c.lru.Keys() {
		if e, ok := c.lru.Peek(k); ok && e.Expired(now) {
			c.lru.Remove(k)
			removed++
		}
	}
	c.expired += uint64(removed)
	return removed
}

func (c *PredictionCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	rate := 0.0
	if total > 0 {
		rate = float64(c.hits) / float64(total)
	}
	return CacheStats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Expired:   c.expired,
		Size:      c.lru.Len(),
		HitRate:   rate,
	}
}

func (c *PredictionCache) sweep(every time.Duration) {
	defer close(c.done)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := c.CleanupExpired(); n > 0 {
				c.cfg.Logger.Debug("prediction cache sweep", applogger.Int("removed", n))
			}
		case <-c.stop:
			return
		}
	}
}

// Close stops the sweeper and drops all entries. Later Get/Put calls fail with a
// cache error, which GetOrCompute absorbs.
func (c *PredictionCache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.lru.Purge()
	c.mu.Unlock()

	if c.stop != nil {
		close(c.stop)
		<-c.done
	}
	return nil
}
