package store

import (
	"context"
	"fmt"
	"sync"
)

// MemCache is an in-process KVCache for tests and single-process runs.
type MemCache struct {
	mu    sync.RWMutex
	items map[string][]byte
}

func NewMemCache() *MemCache {
	return &MemCache{items: map[string][]byte{}}
}

func (c *MemCache) GetItems(ctx context.Context, keys []string) (map[string][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		v, ok := c.items[k]
		if !ok {
			return nil, fmt.Errorf("memcache: key %q: %w", k, ErrNotFound)
		}
		cp := make([]byte, len(v))
		copy(cp, v)
		out[k] = cp
	}
	return out, nil
}

func (c *MemCache) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	c.mu.Lock()
	c.items[key] = cp
	c.mu.Unlock()
	return nil
}

// Has reports whether a key is present; used by tests.
func (c *MemCache) Has(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.items[key]
	return ok
}
