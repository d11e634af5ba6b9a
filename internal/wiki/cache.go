package wiki

import (
	"sync"
	"time"
)

type cacheItem struct {
	value      []byte
	expiration time.Time
}

// DefaultCacheEntries bounds a Cache built without an explicit size.
const DefaultCacheEntries = 1024

// Cache is a minimal in-memory TTL cache of upstream response bodies, safe
// for concurrent access. It holds at most max entries.
type Cache struct {
	mu    sync.RWMutex
	items map[string]cacheItem
	max   int
	now   func() time.Time
}

// NewCache constructs an empty Cache holding up to maxEntries values.
// Non-positive sizes select DefaultCacheEntries.
func NewCache(maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultCacheEntries
	}
	return &Cache{items: make(map[string]cacheItem), max: maxEntries, now: time.Now}
}

// Set stores a value with a time-to-live for the given key. When the cache
// is full, expired entries are swept first and then the entry closest to
// expiry is evicted.
func (c *Cache) Set(key string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if _, ok := c.items[key]; !ok && len(c.items) >= c.max {
		c.sweep(now)
		if len(c.items) >= c.max {
			c.evictOldest()
		}
	}
	c.items[key] = cacheItem{value: value, expiration: now.Add(ttl)}
}

// sweep drops every expired entry. Callers hold mu.
func (c *Cache) sweep(now time.Time) {
	for k, it := range c.items {
		if now.After(it.expiration) {
			delete(c.items, k)
		}
	}
}

func (c *Cache) evictOldest() {
	var oldest string
	var at time.Time
	for k, it := range c.items {
		if oldest == "" || it.expiration.Before(at) {
			oldest, at = k, it.expiration
		}
	}
	delete(c.items, oldest)
}

// Get retrieves a non-expired value for the key, returning false if missing or expired.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	it, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().After(it.expiration) {
		c.mu.Lock()
		delete(c.items, key)
		c.mu.Unlock()
		return nil, false
	}
	return it.value, true
}

// Len returns the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
