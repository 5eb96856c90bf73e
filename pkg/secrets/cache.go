package secrets

import (
	"sync"
	"time"
)

type cacheItem[T any] struct {
	value      T
	expiration time.Time
}

// Cache is a thread-safe TTL cache for values held in process memory.
// It backs resolved secrets and the session-scoped area of the credential store.
type Cache[T any] struct {
	mu   sync.RWMutex
	data map[string]cacheItem[T]
	ttl  time.Duration
}

// NewCache creates a new TTL-based in-memory cache.
// A non-positive TTL keeps entries until they are busted or cleared.
func NewCache[T any](defaultTTL time.Duration) *Cache[T] {
	return &Cache[T]{
		data: make(map[string]cacheItem[T]),
		ttl:  defaultTTL,
	}
}

// Get returns a cached value if present and not expired.
func (c *Cache[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	item, ok := c.data[key]
	c.mu.RUnlock()
	if !ok {
		var zero T
		return zero, false
	}
	if !item.expiration.IsZero() && time.Now().After(item.expiration) {
		c.mu.Lock()
		delete(c.data, key)
		c.mu.Unlock()
		var zero T
		return zero, false
	}
	return item.value, true
}

// Put inserts or overwrites a cache entry with the default TTL.
func (c *Cache[T]) Put(key string, value T) {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweepLocked(now)
	item := cacheItem[T]{value: value}
	if c.ttl > 0 {
		item.expiration = now.Add(c.ttl)
	}
	c.data[key] = item
}

// Bust deletes a single entry from the cache.
func (c *Cache[T]) Bust(key string) {
	c.mu.Lock()
	delete(c.data, key)
	c.mu.Unlock()
}

// Clear drops every entry.
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	c.data = make(map[string]cacheItem[T])
	c.mu.Unlock()
}

// size returns the number of entries, expired ones included until they are swept.
func (c *Cache[T]) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// sweepLocked drops entries past their TTL so that keys which are never read
// again do not accumulate. Caller holds c.mu.
func (c *Cache[T]) sweepLocked(now time.Time) {
	if c.ttl <= 0 {
		return
	}
	for k, v := range c.data {
		if !v.expiration.IsZero() && now.After(v.expiration) {
			delete(c.data, k)
		}
	}
}
