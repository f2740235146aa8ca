package llm

import (
	"sync"
	"time"
)

// cacheEntry holds one cached classification.
type cacheEntry struct {
	expiry time.Time
	result TextResult
}

// resultCache is a TTL cache of classifications keyed by merchant.
type resultCache struct {
	entries map[string]cacheEntry
	now     func() time.Time
	stopCh  chan struct{}
	ttl     time.Duration
	mu      sync.RWMutex
	once    sync.Once
}

// newResultCache creates a cache and starts its sweeper.
func newResultCache(ttl time.Duration) *resultCache {
	if ttl == 0 {
		ttl = 15 * time.Minute
	}

	cache := &resultCache{
		entries: make(map[string]cacheEntry),
		now:     time.Now,
		ttl:     ttl,
		stopCh:  make(chan struct{}),
	}

	go cache.sweep()

	return cache
}

func (c *resultCache) get(key string) (TextResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.entries[key]
	if !exists || c.now().After(entry.expiry) {
		return TextResult{}, false
	}
	return entry.result, true
}

func (c *resultCache) set(key string, result TextResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{
		result: result,
		expiry: c.now().Add(c.ttl),
	}
}

// sweep periodically drops expired entries.
func (c *resultCache) sweep() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.removeExpired()
		}
	}
}

func (c *resultCache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.expiry) {
			delete(c.entries, key)
		}
	}
}

func (c *resultCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the sweeper.
func (c *resultCache) Close() {
	c.once.Do(func() { close(c.stopCh) })
}
