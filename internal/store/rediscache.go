package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/zarrpipe/internal/platform/envutil"
	"github.com/yungbote/zarrpipe/internal/platform/logger"
)

// RedisCache is a KVCache backed by Redis. Suited to the metadata cache,
// where entries are small and read on every store operation.
type RedisCache struct {
	log    *logger.Logger
	rdb    *goredis.Client
	prefix string
}

func NewRedisCache(ctx context.Context, log *logger.Logger, addr, prefix string) (*RedisCache, error) {
	if log == nil {
		log = logger.NewNop()
	}
	if strings.TrimSpace(addr) == "" {
		return nil, fmt.Errorf("rediscache: address required")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("rediscache: ping: %w", err)
	}
	return &RedisCache{
		log:    log.With("service", "RedisCache"),
		rdb:    rdb,
		prefix: strings.Trim(prefix, ":"),
	}, nil
}

func NewRedisCacheFromEnv(ctx context.Context, log *logger.Logger, prefix string) (*RedisCache, error) {
	addr := envutil.String("REDIS_ADDR", "")
	if addr == "" {
		return nil, fmt.Errorf("rediscache: missing env var REDIS_ADDR")
	}
	return NewRedisCache(ctx, log, addr, prefix)
}

func (c *RedisCache) Close() error { return c.rdb.Close() }

func (c *RedisCache) GetItems(ctx context.Context, keys []string) (map[string][]byte, error) {
	if len(keys) == 0 {
		return map[string][]byte{}, nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.key(k)
	}
	vals, err := c.rdb.MGet(ctx, full...).Result()
	if err != nil {
		return nil, fmt.Errorf("rediscache: mget: %w", err)
	}
	out := make(map[string][]byte, len(keys))
	for i, v := range vals {
		if v == nil {
			return nil, fmt.Errorf("rediscache: key %q: %w", keys[i], ErrNotFound)
		}
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("rediscache: key %q: unexpected value type %T", keys[i], v)
		}
		out[keys[i]] = []byte(s)
	}
	return out, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte) error {
	if err := c.rdb.Set(ctx, c.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("rediscache: set %q: %w", key, err)
	}
	return nil
}

func (c *RedisCache) key(k string) string {
	if c.prefix == "" {
		return k
	}
	return c.prefix + ":" + k
}
