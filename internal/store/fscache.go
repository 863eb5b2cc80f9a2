package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FSCache is a KVCache over a local directory, one file per key. Used for
// local runs where inputs and metadata are cached next to the target.
type FSCache struct {
	root string
}

func NewFSCache(root string) (*FSCache, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("fscache: %w", err)
	}
	return &FSCache{root: root}, nil
}

func (c *FSCache) GetItems(ctx context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw, err := os.ReadFile(filepath.Join(c.root, k))
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("fscache: key %q: %w", k, ErrNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("fscache: read %q: %w", k, err)
		}
		out[k] = raw
	}
	return out, nil
}

func (c *FSCache) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := filepath.Join(c.root, key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, value, 0o644); err != nil {
		return fmt.Errorf("fscache: write %q: %w", key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("fscache: write %q: %w", key, err)
	}
	return nil
}
