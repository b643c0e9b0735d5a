package cache

import (
	"bytes"
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value      []byte
	expiresAt  time.Time
	lastAccess time.Time
}

// MemoryQueryCache is an in-process QueryCache bounded by TTL and by a
// maximum entry count with least-recently-used eviction.
type MemoryQueryCache struct {
	mu              sync.RWMutex
	items           map[string]*memoryEntry
	maxEntries      int
	stopCleanup     chan struct{}
	cleanupOnce     sync.Once
	cleanupInterval time.Duration
}

// NewMemoryQueryCache creates an in-memory cache. Expired entries are
// swept every cleanupInterval (default 5 minutes). maxEntries <= 0 means
// no entry cap.
func NewMemoryQueryCache(cleanupInterval time.Duration, maxEntries int) *MemoryQueryCache {
	if cleanupInterval <= 0 {
		cleanupInterval = 5 * time.Minute
	}

	c := &MemoryQueryCache{
		items:           make(map[string]*memoryEntry),
		maxEntries:      maxEntries,
		stopCleanup:     make(chan struct{}),
		cleanupInterval: cleanupInterval,
	}

	// background cleanup routine
	go c.cleanupExpired()

	return c
}

// Get retrieves a value from the cache.
func (c *MemoryQueryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	now := time.Now()

	c.mu.Lock()
	entry, ok := c.items[key]
	if !ok {
		c.mu.Unlock()
		return nil, false, nil
	}
	if now.After(entry.expiresAt) {
		delete(c.items, key)
		c.mu.Unlock()
		return nil, false, nil
	}
	entry.lastAccess = now
	value := entry.value
	c.mu.Unlock()

	return value, true, nil
}

// Set stores a value with the given ttl. Storing an existing key with the
// same value is a no-op; a different value returns ErrConflict and the
// original is kept. ttl <= 0 removes the key.
func (c *MemoryQueryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		c.mu.Lock()
		delete(c.items, key)
		c.mu.Unlock()
		return nil
	}

	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.items[key]; ok && now.Before(existing.expiresAt) {
		if bytes.Equal(existing.value, value) {
			return nil
		}
		return ErrConflict
	}

	// Copy to decouple from caller's buffer
	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	c.items[key] = &memoryEntry{
		value:      valueCopy,
		expiresAt:  now.Add(ttl),
		lastAccess: now,
	}

	if c.maxEntries > 0 && len(c.items) > c.maxEntries {
		c.evictOldestLocked()
	}

	return nil
}

// evictOldestLocked removes least-recently-accessed entries until the cache
// is back within maxEntries. Caller holds c.mu.
func (c *MemoryQueryCache) evictOldestLocked() {
	for len(c.items) > c.maxEntries {
		var oldestKey string
		var oldestAccess time.Time
		first := true
		for k, v := range c.items {
			if first || v.lastAccess.Before(oldestAccess) {
				oldestKey = k
				oldestAccess = v.lastAccess
				first = false
			}
		}
		delete(c.items, oldestKey)
	}
}

// cleanupExpired runs periodically to remove expired entries.
func (c *MemoryQueryCache) cleanupExpired() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for k, v := range c.items {
				if now.After(v.expiresAt) {
					delete(c.items, k)
				}
			}
			c.mu.Unlock()
		case <-c.stopCleanup:
			return
		}
	}
}

// Close stops the cleanup goroutine. Call this on shutdown or in tests.
func (c *MemoryQueryCache) Close() error {
	c.cleanupOnce.Do(func() {
		close(c.stopCleanup)
	})
	return nil
}

// Len returns the number of items currently in the cache.
func (c *MemoryQueryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Clear removes all items from the cache. Useful for tests or manual resets.
func (c *MemoryQueryCache) Clear() {
	c.mu.Lock()
	c.items = make(map[string]*memoryEntry)
	c.mu.Unlock()
}
