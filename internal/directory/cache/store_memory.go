package cache

import (
	"context"
	"sync"
	"time"

	"npimatch/internal/directory"
)

type cachedSearch struct {
	entry    Entry
	storedAt time.Time
}

// InMemoryStore is a process-local Store with TTL expiration.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[Key]cachedSearch
	ttl     time.Duration
	now     func() time.Time
}

// NewInMemoryStore creates an in-memory store with the specified TTL.
func NewInMemoryStore(ttl time.Duration) *InMemoryStore {
	return &InMemoryStore{
		entries: make(map[Key]cachedSearch),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Save stores entry under key, replacing any previous entry.
func (c *InMemoryStore) Save(_ context.Context, key Key, entry Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry.Records = append([]directory.Record(nil), entry.Records...)
	c.entries[key] = cachedSearch{entry: entry, storedAt: c.now()}
	return nil
}

// Find returns ErrNotFound if the key does not exist or has expired past the TTL.
func (c *InMemoryStore) Find(_ context.Context, key Key) (Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if cached, ok := c.entries[key]; ok {
		if c.now().Sub(cached.storedAt) < c.ttl {
			entry := cached.entry
			entry.Records = append([]directory.Record(nil), entry.Records...)
			return entry, nil
		}
	}
	return Entry{}, ErrNotFound
}

// Purge drops expired entries and returns how many were removed.
func (c *InMemoryStore) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	now := c.now()
	for k, v := range c.entries {
		if now.Sub(v.storedAt) >= c.ttl {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}
