package cache

import (
	"context"
	"sync"
)

// Cache is the response cache consulted by the list-my-products path.
// Entries are raw JSON bodies so a hit can be served byte-for-byte.
//
// There is no TTL and nothing invalidates entries on product writes; a
// cached list can go stale until the process restarts. That staleness is a
// documented property of the gateway. Do not add eviction here without
// changing the write paths too.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, val []byte)
}

// Memory is the single-process backing: an unbounded map. Concurrent
// populations of the same key write the same derived value, so
// last-write-wins is fine.
type Memory struct {
	mu sync.RWMutex
	m  map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{
		m: make(map[string][]byte),
	}
}

func (c *Memory) Get(ctx context.Context, key string) ([]byte, bool) {
	c.mu.RLock()
	val, ok := c.m[key]
	c.mu.RUnlock()

	return val, ok
}

func (c *Memory) Set(ctx context.Context, key string, val []byte) {
	c.mu.Lock()
	c.m[key] = val
	c.mu.Unlock()
}
