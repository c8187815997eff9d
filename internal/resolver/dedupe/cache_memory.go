package dedupe

import (
	"context"
	"sync"
	"time"
)

const defaultMaxEntries = 50000

// InMemoryCache is a bounded map of key to expiry. Expired entries are
// reaped lazily on access and swept wholesale when the bound is hit.
type InMemoryCache struct {
	mu         sync.Mutex
	entries    map[string]time.Time
	maxEntries int
	clock      func() time.Time
}

// Option configures an InMemoryCache.
type Option func(*InMemoryCache)

// WithMaxEntries bounds the cache size.
func WithMaxEntries(n int) Option {
	return func(c *InMemoryCache) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}

// WithClock sets the clock function for testability.
func WithClock(clock func() time.Time) Option {
	return func(c *InMemoryCache) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// NewInMemoryCache creates a cache with the default bound.
func NewInMemoryCache(opts ...Option) *InMemoryCache {
	c := &InMemoryCache{
		entries:    make(map[string]time.Time),
		maxEntries: defaultMaxEntries,
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SeenAndRecord atomically checks and records key.
func (c *InMemoryCache) SeenAndRecord(ctx context.Context, key string, window time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock()
	if expiry, ok := c.entries[key]; ok && now.Before(expiry) {
		return true, nil
	}

	if len(c.entries) >= c.maxEntries {
		c.sweep(now)
	}
	c.entries[key] = now.Add(window)
	return false, nil
}

// Forget drops key.
func (c *InMemoryCache) Forget(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

// sweep removes expired entries. Must be called while holding c.mu. If
// everything is still live the oldest entries go first so the bound holds.
func (c *InMemoryCache) sweep(now time.Time) {
	for k, expiry := range c.entries {
		if !now.Before(expiry) {
			delete(c.entries, k)
		}
	}
	for k := range c.entries {
		if len(c.entries) < c.maxEntries {
			break
		}
		delete(c.entries, k)
	}
}
