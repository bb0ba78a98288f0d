package market

import (
	"sync"
	"time"
)

type cacheKey struct {
	kind     string
	symbol   string
	interval string
}

type cacheEntry struct {
	value     any
	expiresAt time.Time
}

// Cache is a process-wide TTL cache keyed by (kind, symbol, interval).
// The clock is injected so TTL boundaries are testable.
type Cache struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[cacheKey]cacheEntry
}

func NewCache(now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{
		now:     now,
		entries: make(map[cacheKey]cacheEntry),
	}
}

func (c *Cache) Get(kind, symbol, interval string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[cacheKey{kind: kind, symbol: symbol, interval: interval}]
	if !ok {
		return nil, false
	}
	if !c.now().Before(entry.expiresAt) {
		delete(c.entries, cacheKey{kind: kind, symbol: symbol, interval: interval})
		return nil, false
	}
	return entry.value, true
}

func (c *Cache) Put(kind, symbol, interval string, value any, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey{kind: kind, symbol: symbol, interval: interval}] = cacheEntry{
		value:     value,
		expiresAt: c.now().Add(ttl),
	}
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
