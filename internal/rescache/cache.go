// Package rescache memoizes successful lane results keyed by query
// fingerprint, with per-lane TTLs and bounded LRU eviction.
package rescache

import (
	"time"

	"github.com/maypok86/otter"

	"github.com/fathomsearch/fathom/internal/lane"
)

// entry pairs a cached successful result with its expiry instant.
// Reads refresh recency via the underlying cache but never extend TTL.
type entry struct {
	result    lane.Result
	expiresAt time.Time
}

// Cache is a bounded, thread-safe store of successful lane results backed
// by an otter cache. Eviction beyond capacity is least-recently-used;
// expired entries are removed lazily on access.
type Cache struct {
	cache otter.Cache[lane.Fingerprint, entry]
	now   func() time.Time
}

// New creates a Cache bounded to capacity entries.
func New(capacity int) *Cache {
	return newWithClock(capacity, time.Now)
}

func newWithClock(capacity int, now func() time.Time) *Cache {
	cache, err := otter.MustBuilder[lane.Fingerprint, entry](capacity).
		Cost(func(_ lane.Fingerprint, _ entry) uint32 { return 1 }).
		Build()
	if err != nil {
		panic("rescache: failed to create cache: " + err.Error())
	}
	return &Cache{cache: cache, now: now}
}

// Get returns the cached result for fp if present and unexpired.
// An expired entry is dropped and reported as a miss.
func (c *Cache) Get(fp lane.Fingerprint) (lane.Result, bool) {
	e, found := c.cache.Get(fp)
	if !found {
		return lane.Result{}, false
	}
	if !c.now().Before(e.expiresAt) {
		c.cache.Delete(fp)
		return lane.Result{}, false
	}
	return e.result, true
}

// Put stores a successful result under fp with the given TTL.
// Non-success results and non-positive TTLs are ignored.
func (c *Cache) Put(fp lane.Fingerprint, res lane.Result, ttl time.Duration) {
	if res.Status != lane.StatusSuccess || ttl <= 0 {
		return
	}
	c.cache.Set(fp, entry{
		result:    res,
		expiresAt: c.now().Add(ttl),
	})
}

// Size returns the number of entries currently held.
func (c *Cache) Size() int {
	return c.cache.Size()
}

// Close releases resources held by the underlying cache.
func (c *Cache) Close() {
	c.cache.Close()
}
