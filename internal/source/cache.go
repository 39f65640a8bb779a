package source

import (
	"sync"
	"time"

	"paydash/internal/ledger"
)

// DefaultCacheTTL matches the refresh cadence of the published sheet.
const DefaultCacheTTL = 120 * time.Second

// CacheEntry is the last successful table of one source.
type CacheEntry struct {
	Table       ledger.RawTable `json:"-"`
	Fingerprint string          `json:"fingerprint"`
	Rows        int             `json:"rows"`
	CachedAt    time.Time       `json:"cached_at"`
	ExpiresAt   time.Time       `json:"expires_at"`
	HitCount    int             `json:"hit_count"`
}

// CacheStats is a snapshot of cache counters.
type CacheStats struct {
	Entries    int                   `json:"entries"`
	HitCount   int64                 `json:"hit_count"`
	MissCount  int64                 `json:"miss_count"`
	HitRatio   float64               `json:"hit_ratio"`
	TTLSeconds float64               `json:"ttl_seconds"`
	BySource   map[string]CacheEntry `json:"by_source"`
}

// Cache holds one table per source name for a fixed TTL.
type Cache struct {
	entries   map[string]CacheEntry
	mutex     sync.RWMutex
	ttl       time.Duration
	hitCount  int64
	missCount int64
	stopChan  chan struct{}
	stopOnce  sync.Once
	now       func() time.Time
}

// NewCache creates a cache and starts its cleanup goroutine. A non-positive
// ttl falls back to DefaultCacheTTL.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	cache := &Cache{
		entries:  make(map[string]CacheEntry),
		ttl:      ttl,
		stopChan: make(chan struct{}),
		now:      time.Now,
	}

	go cache.cleanup(cleanupInterval(ttl))

	return cache
}

func cleanupInterval(ttl time.Duration) time.Duration {
	if ttl < time.Minute {
		return time.Minute
	}
	return ttl
}

// TTL returns the configured time to live.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Get returns the entry for name while it is fresh.
func (c *Cache) Get(name string) (CacheEntry, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry, exists := c.entries[name]
	if !exists || c.expired(entry) {
		c.missCount++
		return CacheEntry{}, false
	}

	entry.HitCount++
	c.entries[name] = entry
	c.hitCount++

	return entry, true
}

// Set stores table as the current entry for name.
func (c *Cache) Set(name string, table ledger.RawTable, fingerprint string) CacheEntry {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := c.now()
	entry := CacheEntry{
		Table:       table,
		Fingerprint: fingerprint,
		Rows:        table.Len(),
		CachedAt:    now,
		ExpiresAt:   now.Add(c.ttl),
	}
	c.entries[name] = entry
	return entry
}

// Invalidate drops the entry for name.
func (c *Cache) Invalidate(name string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.entries, name)
}

// InvalidateAll drops every entry.
func (c *Cache) InvalidateAll() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.entries = make(map[string]CacheEntry)
}

// Stats returns a snapshot of counters and entries.
func (c *Cache) Stats() CacheStats {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	total := c.hitCount + c.missCount
	ratio := float64(0)
	if total > 0 {
		ratio = float64(c.hitCount) / float64(total)
	}

	bySource := make(map[string]CacheEntry, len(c.entries))
	for name, entry := range c.entries {
		bySource[name] = entry
	}

	return CacheStats{
		Entries:    len(c.entries),
		HitCount:   c.hitCount,
		MissCount:  c.missCount,
		HitRatio:   ratio,
		TTLSeconds: c.ttl.Seconds(),
		BySource:   bySource,
	}
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (c *Cache) Stop() {
	c.stopOnce.Do(func() { close(c.stopChan) })
}

// expired reports whether the entry is older than the TTL. An entry exactly
// ttl old is still served.
func (c *Cache) expired(entry CacheEntry) bool {
	return c.now().Sub(entry.CachedAt) > c.ttl
}

func (c *Cache) purgeExpired() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	for key, entry := range c.entries {
		if c.expired(entry) {
			delete(c.entries, key)
		}
	}
}

func (c *Cache) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.purgeExpired()
		case <-c.stopChan:
			return
		}
	}
}
