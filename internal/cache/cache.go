package cache

import (
	"sort"
	"sync"
	"time"
)

// Entry holds cached data with the digest it was produced from.
type Entry[T any] struct {
	Data       T
	Digest     uint64
	StoredAt   time.Time
	LastAccess time.Time
}

// Cache is a thread-safe generic cache with LRU eviction.
type Cache[T any] struct {
	entries map[string]Entry[T]
	mu      sync.RWMutex
	maxSize int
	now     func() time.Time
}

// New creates a new cache with the specified maximum number of entries.
// A non-positive maxSize means unbounded.
func New[T any](maxSize int) *Cache[T] {
	return &Cache[T]{
		entries: make(map[string]Entry[T]),
		maxSize: maxSize,
		now:     time.Now,
	}
}

// Get returns cached data for key.
func (c *Cache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		var zero T
		return zero, false
	}

	entry.LastAccess = c.now()
	c.entries[key] = entry
	return entry.Data, true
}

// Has reports whether key is cached without touching its access time.
func (c *Cache[T]) Has(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[key]
	return ok
}

// Fresh reports whether key is cached with the given digest. A fresh entry
// counts as accessed.
func (c *Cache[T]) Fresh(key string, digest uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok || entry.Digest != digest {
		return false
	}
	entry.LastAccess = c.now()
	c.entries[key] = entry
	return true
}

// Set stores data in the cache with its digest.
func (c *Cache[T]) Set(key string, data T, digest uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.entries[key] = Entry[T]{
		Data:       data,
		Digest:     digest,
		StoredAt:   now,
		LastAccess: now,
	}

	c.evictOldestLocked()
}

// Clear removes every entry.
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]Entry[T])
}

// Len returns the number of entries in the cache.
func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// evictOldestLocked removes oldest entries when over capacity.
// Must be called with lock held.
func (c *Cache[T]) evictOldestLocked() {
	if c.maxSize <= 0 {
		return
	}
	excess := len(c.entries) - c.maxSize
	if excess <= 0 {
		return
	}

	type keyAccess struct {
		key        string
		lastAccess time.Time
	}
	entries := make([]keyAccess, 0, len(c.entries))
	for key, entry := range c.entries {
		entries = append(entries, keyAccess{key, entry.LastAccess})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].lastAccess.Equal(entries[j].lastAccess) {
			return entries[i].key < entries[j].key
		}
		return entries[i].lastAccess.Before(entries[j].lastAccess)
	})

	for i := 0; i < excess; i++ {
		delete(c.entries, entries[i].key)
	}
}
