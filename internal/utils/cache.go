package utils

import (
	"os"
	"sync"
	"time"
)

type cacheEntry[V any] struct {
	value   V
	modTime time.Time
	size    int64
	stamped bool
}

// Cache is a thread-safe cache whose entries can be tied to a file, in
// which case they are dropped once the file's size or modification time changes
type Cache[K comparable, V any] struct {
	mu     sync.RWMutex
	items  map[K]*cacheEntry[V]
	hits   int
	misses int
}

// CacheStats reports cache usage
type CacheStats struct {
	Size   int
	Hits   int
	Misses int
}

// NewCache creates an empty cache
func NewCache[K comparable, V any]() *Cache[K, V] {
	return &Cache[K, V]{items: make(map[K]*cacheEntry[V])}
}

// Get returns the cached value for key
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.items[key]
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	return entry.value, true
}

// Set stores value under key without file validation
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = &cacheEntry[V]{value: value}
}

// GetFile returns the value cached for key as long as path is unchanged
// since SetFile stored it
func (c *Cache[K, V]) GetFile(key K, path string) (V, bool) {
	var zero V
	stat, err := os.Stat(path)

	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.items[key]
	if !ok || !entry.stamped || err != nil ||
		!stat.ModTime().Equal(entry.modTime) || stat.Size() != entry.size {
		if ok {
			delete(c.items, key)
		}
		c.misses++
		return zero, false
	}
	c.hits++
	return entry.value, true
}

// SetFile stores value under key stamped with the current state of path
func (c *Cache[K, V]) SetFile(key K, value V, path string) error {
	stat, err := os.Stat(path)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = &cacheEntry[V]{
		value:   value,
		modTime: stat.ModTime(),
		size:    stat.Size(),
		stamped: true,
	}
	return nil
}

// Delete removes key
func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Clear removes every entry and resets the statistics
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[K]*cacheEntry[V])
	c.hits, c.misses = 0, 0
}

// Size returns the number of entries
func (c *Cache[K, V]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Stats returns the current statistics
func (c *Cache[K, V]) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CacheStats{Size: len(c.items), Hits: c.hits, Misses: c.misses}
}
