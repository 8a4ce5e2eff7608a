// Package cache provides the time-bounded in-memory caches that sit in
// front of the rule and FPL repositories.
//
// The caches are the only shared mutable state in the evaluation core. They
// are explicit injected components (constructed once at process start, never
// ambient globals) so tests can build isolated instances with their own
// clocks. Concurrent Get/Set/Invalidate is safe without external locking;
// population races between simultaneous misses are acceptable because cached
// values for the same key are identical (last writer wins).
package cache

import (
	"sync"
	"sync/atomic"
	"time"
)

// Stats is a point-in-time snapshot of cache effectiveness.
type Stats struct {
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	Entries int    `json:"entryCount"`
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache is a generic TTL cache keyed by any comparable type. Expiry is
// per-entry and absolute; callers choose between rolling TTLs (Set) and
// pinned instants (SetUntil).
type Cache[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]entry[V]
	now     func() time.Time

	hits   atomic.Uint64
	misses atomic.Uint64
}

// New constructs a cache using the wall clock.
func New[K comparable, V any]() *Cache[K, V] {
	return NewWithClock[K, V](time.Now)
}

// NewWithClock constructs a cache with an injected clock. Tests pin the
// clock to exercise expiry boundaries exactly.
func NewWithClock[K comparable, V any](now func() time.Time) *Cache[K, V] {
	return &Cache[K, V]{
		entries: make(map[K]entry[V]),
		now:     now,
	}
}

// Get returns the cached value for key. Expired entries are misses and are
// removed lazily. An entry expiring at instant T is a hit strictly before T
// and a miss at T or later.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		c.misses.Add(1)
		var zero V
		return zero, false
	}
	if !c.now().Before(e.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock; another writer may have refreshed.
		if cur, still := c.entries[key]; still && cur.expiresAt.Equal(e.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		c.misses.Add(1)
		var zero V
		return zero, false
	}

	c.hits.Add(1)
	return e.value, true
}

// Set stores value with a rolling TTL from now.
func (c *Cache[K, V]) Set(key K, value V, ttl time.Duration) {
	c.SetUntil(key, value, c.now().Add(ttl))
}

// SetUntil stores value with an absolute expiry instant.
func (c *Cache[K, V]) SetUntil(key K, value V, expiresAt time.Time) {
	c.mu.Lock()
	c.entries[key] = entry[V]{value: value, expiresAt: expiresAt}
	c.mu.Unlock()
}

// Invalidate removes a single key.
func (c *Cache[K, V]) Invalidate(key K) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// InvalidateAll clears every entry. Hit/miss counters are preserved; they
// describe cache effectiveness over the process lifetime.
func (c *Cache[K, V]) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[K]entry[V])
	c.mu.Unlock()
}

// Stats sweeps expired entries and reports counters plus the live entry count.
func (c *Cache[K, V]) Stats() Stats {
	now := c.now()
	c.mu.Lock()
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
		}
	}
	n := len(c.entries)
	c.mu.Unlock()

	return Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: n,
	}
}
