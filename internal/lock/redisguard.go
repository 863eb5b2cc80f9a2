package lock

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/zarrpipe/internal/platform/envutil"
	"github.com/yungbote/zarrpipe/internal/platform/logger"
)

// unlockScript deletes the lock key only if this holder still owns it, so a
// lock that expired and was re-acquired by another writer is never released
// from here.
var unlockScript = goredis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisGuard is a ConflictGuard over Redis, for executors that spread chunk
// writers across processes or machines. Each ordinal maps to one lock key
// acquired with SET NX PX and a per-holder token.
type RedisGuard struct {
	log       *logger.Logger
	rdb       *goredis.Client
	prefix    string
	ttl       time.Duration
	retryWait time.Duration
}

func NewRedisGuard(ctx context.Context, log *logger.Logger, addr, prefix string) (*RedisGuard, error) {
	if log == nil {
		log = logger.NewNop()
	}
	if strings.TrimSpace(addr) == "" {
		return nil, fmt.Errorf("lock: redis address required")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("lock: redis ping: %w", err)
	}
	return &RedisGuard{
		log:       log.With("service", "RedisGuard"),
		rdb:       rdb,
		prefix:    strings.Trim(prefix, ":"),
		ttl:       envutil.Duration("CONFLICT_LOCK_TTL", 5*time.Minute),
		retryWait: envutil.Duration("CONFLICT_LOCK_RETRY_WAIT", 250*time.Millisecond),
	}, nil
}

func NewRedisGuardFromEnv(ctx context.Context, log *logger.Logger, prefix string) (*RedisGuard, error) {
	addr := envutil.String("REDIS_ADDR", "")
	if addr == "" {
		return nil, fmt.Errorf("lock: missing env var REDIS_ADDR")
	}
	return NewRedisGuard(ctx, log, addr, prefix)
}

func (g *RedisGuard) Close() error { return g.rdb.Close() }

func (g *RedisGuard) Acquire(ctx context.Context, ordinals []int) (func(), error) {
	if err := checkAscending(ordinals); err != nil {
		return nil, err
	}
	token := uuid.NewString()
	held := make([]string, 0, len(ordinals))
	releaseHeld := func() {
		for i := len(held) - 1; i >= 0; i-- {
			if err := unlockScript.Run(context.Background(), g.rdb, []string{held[i]}, token).Err(); err != nil && err != goredis.Nil {
				g.log.Warn("failed to release conflict lock", "key", held[i], "error", err)
			}
		}
	}
	for _, ord := range ordinals {
		key := g.key(ord)
		if err := g.acquireOne(ctx, key, token); err != nil {
			releaseHeld()
			return nil, err
		}
		held = append(held, key)
	}
	return releaseHeld, nil
}

func (g *RedisGuard) acquireOne(ctx context.Context, key, token string) error {
	for {
		ok, err := g.rdb.SetNX(ctx, key, token, g.ttl).Result()
		if err != nil {
			return fmt.Errorf("lock: acquire %s: %w", key, err)
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(g.retryWait):
		}
	}
}

func (g *RedisGuard) key(ordinal int) string {
	base := "chunk-lock:" + strconv.Itoa(ordinal)
	if g.prefix == "" {
		return base
	}
	return g.prefix + ":" + base
}
