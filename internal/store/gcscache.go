package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/option"

	"github.com/yungbote/zarrpipe/internal/platform/envutil"
	"github.com/yungbote/zarrpipe/internal/platform/logger"
)

// GCSCache is a KVCache backed by a GCS bucket prefix. Batched reads fan out
// with bounded parallelism; object reads are far cheaper in parallel than
// serial against GCS.
type GCSCache struct {
	log         *logger.Logger
	client      *storage.Client
	bucket      string
	prefix      string
	getParallel int
}

func NewGCSCache(ctx context.Context, log *logger.Logger, bucket, prefix string, opts ...option.ClientOption) (*GCSCache, error) {
	if log == nil {
		log = logger.NewNop()
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("gcscache: bucket name required")
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcscache: create storage client: %w", err)
	}
	return &GCSCache{
		log:         log.With("service", "GCSCache", "bucket", bucket),
		client:      client,
		bucket:      bucket,
		prefix:      strings.Trim(prefix, "/"),
		getParallel: envutil.Int("GCS_CACHE_GET_PARALLELISM", 8),
	}, nil
}

func NewGCSCacheFromEnv(ctx context.Context, log *logger.Logger, prefix string) (*GCSCache, error) {
	bucket := envutil.String("CACHE_GCS_BUCKET_NAME", "")
	if bucket == "" {
		return nil, fmt.Errorf("gcscache: missing env var CACHE_GCS_BUCKET_NAME")
	}
	return NewGCSCache(ctx, log, bucket, prefix)
}

func (c *GCSCache) Close() error { return c.client.Close() }

func (c *GCSCache) GetItems(ctx context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.getParallel)
	for _, key := range keys {
		g.Go(func() error {
			raw, err := c.read(gctx, key)
			if err != nil {
				return err
			}
			mu.Lock()
			out[key] = raw
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *GCSCache) read(ctx context.Context, key string) ([]byte, error) {
	r, err := c.client.Bucket(c.bucket).Object(c.objectName(key)).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("gcscache: key %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("gcscache: open %q: %w", key, err)
	}
	defer r.Close()
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("gcscache: read %q: %w", key, err)
	}
	return raw, nil
}

func (c *GCSCache) Set(ctx context.Context, key string, value []byte) error {
	w := c.client.Bucket(c.bucket).Object(c.objectName(key)).NewWriter(ctx)
	if _, err := w.Write(value); err != nil {
		_ = w.Close()
		return fmt.Errorf("gcscache: write %q: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcscache: write %q: %w", key, err)
	}
	c.log.Debug("cached object", "key", key, "bytes", len(value))
	return nil
}

func (c *GCSCache) objectName(key string) string {
	if c.prefix == "" {
		return key
	}
	return c.prefix + "/" + key
}
