package cache

import (
	"context"
	"sync"
	"time"

	"stock-analyzer/internal/models"
)

type memoryEntry struct {
	data      []byte
	expiresAt time.Time // zero means no expiry
}

// MemoryCache keeps encoded entries in process memory.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryCache creates an empty in-process cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Get returns a copy of the stored prediction.
func (c *MemoryCache) Get(_ context.Context, key Key) (*models.PredictionResult, error) {
	c.mu.RLock()
	e, ok := c.entries[key.String()]
	c.mu.RUnlock()

	if !ok {
		return nil, miss(key)
	}
	if !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt) {
		c.mu.Lock()
		// only drop the entry we looked at; a concurrent Set may have replaced it
		if cur, ok := c.entries[key.String()]; ok && cur.expiresAt.Equal(e.expiresAt) {
			delete(c.entries, key.String())
		}
		c.mu.Unlock()
		return nil, miss(key)
	}
	return Decode(e.data)
}

// Set stores value under key. A ttl <= 0 stores without expiry.
func (c *MemoryCache) Set(_ context.Context, key Key, value *models.PredictionResult, ttl time.Duration) error {
	data, err := Encode(value)
	if err != nil {
		return err
	}
	e := memoryEntry{data: data}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}

	c.mu.Lock()
	c.entries[key.String()] = e
	c.mu.Unlock()
	return nil
}

// Delete removes key.
func (c *MemoryCache) Delete(_ context.Context, key Key) error {
	c.mu.Lock()
	delete(c.entries, key.String())
	c.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close drops every entry.
func (c *MemoryCache) Close() error {
	c.mu.Lock()
	c.entries = make(map[string]memoryEntry)
	c.mu.Unlock()
	return nil
}
