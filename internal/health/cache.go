// Package health caches short-lived provider liveness probes. A probe result
// is memoized for a per-provider TTL; inside the window every caller sees the
// cached value, and refreshes are serialized so a burst of requests never
// causes a probe storm.
package health

import (
	"context"
	"sync"
	"time"
)

// ProbeFunc performs one liveness check. Any error, timeout, or non-success
// status must yield false.
type ProbeFunc func(ctx context.Context) bool

// Cache memoizes a single provider's probe with a TTL. Safe for concurrent
// use; the cache lives for the lifetime of the process and is never
// persisted.
type Cache struct {
	mu        sync.Mutex
	probe     ProbeFunc
	ttl       time.Duration
	value     bool
	checkedAt time.Time
	checked   bool

	now func() time.Time
}

// NewCache creates a probe cache with the given TTL.
func NewCache(probe ProbeFunc, ttl time.Duration) *Cache {
	return &Cache{
		probe: probe,
		ttl:   ttl,
		now:   time.Now,
	}
}

// WithClock replaces the cache's clock. Tests use this to expire entries
// without sleeping.
func (c *Cache) WithClock(now func() time.Time) *Cache {
	c.now = now
	return c
}

// Check returns the cached probe result, refreshing it when the TTL has
// lapsed. The mutex is held across the refresh so concurrent callers during
// a refresh observe the single in-flight probe's result rather than racing
// their own. Staleness inside the TTL window is deliberate.
func (c *Cache) Check(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.checked && c.now().Sub(c.checkedAt) < c.ttl {
		return c.value
	}

	c.value = c.probe(ctx)
	c.checkedAt = c.now()
	c.checked = true
	return c.value
}

// Invalidate drops the cached value so the next Check probes again.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checked = false
}
