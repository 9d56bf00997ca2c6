package resolve

import (
	"sync"
	"sync/atomic"
)

// PointCache memoizes resolved region centers. Entries never expire: a
// resolution depends only on the region name and the loaded catalogs, so the
// cache is cleared on catalog reload and nowhere else. When maxEntries is
// positive the oldest entry is evicted at capacity.
type PointCache struct {
	mu         sync.RWMutex
	entries    map[string]Resolution
	order      []string // insertion order: front=oldest
	maxEntries int
	hits       atomic.Int64
	misses     atomic.Int64
}

// CacheStats contains cache performance statistics.
type CacheStats struct {
	Entries    int     `json:"entries"`
	MaxEntries int     `json:"max_entries"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	HitRate    float64 `json:"hit_rate"`
}

// NewPointCache creates a cache. maxEntries <= 0 means unbounded.
func NewPointCache(maxEntries int) *PointCache {
	return &PointCache{
		entries:    make(map[string]Resolution),
		maxEntries: maxEntries,
	}
}

// Get returns the memoized resolution for a region name.
func (c *PointCache) Get(name string) (Resolution, bool) {
	c.mu.RLock()
	p, ok := c.entries[name]
	c.mu.RUnlock()

	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return p, ok
}

// Put stores a complete resolution, evicting the oldest entry at capacity.
func (c *PointCache) Put(name string, r Resolution) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[name]; ok {
		c.entries[name] = r
		return
	}

	for c.maxEntries > 0 && len(c.entries) >= c.maxEntries && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[name] = r
	c.order = append(c.order, name)
}

// Invalidate drops every entry. Hit and miss counters are kept.
func (c *PointCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]Resolution)
	c.order = nil
}

// Stats returns cache performance statistics.
func (c *PointCache) Stats() CacheStats {
	c.mu.RLock()
	entries := len(c.entries)
	maxEntries := c.maxEntries
	c.mu.RUnlock()

	hits := c.hits.Load()
	misses := c.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return CacheStats{
		Entries:    entries,
		MaxEntries: maxEntries,
		Hits:       hits,
		Misses:     misses,
		HitRate:    hitRate,
	}
}
