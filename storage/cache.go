package storage

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache keeps collection listings in Redis for a bounded time. Writers must
// call Evict after every change so subscribers never re-list stale data.
//
// Every Evict bumps a per-path generation. A listing is only stored if the
// generation it was read under is still current, so a slow reader cannot
// put back a listing that a concurrent write already invalidated.
type Cache struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a snapshot cache. A zero TTL disables storing.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{redis: client, ttl: ttl}
}

// Wrap returns a ListFunc that serves from the cache and falls back to next.
func (c *Cache) Wrap(next ListFunc) ListFunc {
	return func(ctx context.Context, path string) ([]Document, error) {
		if docs, ok := c.load(ctx, path); ok {
			return docs, nil
		}
		gen, genOK := c.generation(ctx, path)
		docs, err := next(ctx, path)
		if err != nil {
			return nil, err
		}
		if genOK {
			c.store(ctx, path, gen, docs)
		}
		return docs, nil
	}
}

func (c *Cache) load(ctx context.Context, path string) ([]Document, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, snapshotCacheKey(path)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			// On redis errors fall back to the backing store without failing.
			_ = c.redis.Del(ctx, snapshotCacheKey(path)).Err()
		}
		return nil, false
	}
	docs, err := decodeDocuments(data)
	if err != nil {
		_ = c.redis.Del(ctx, snapshotCacheKey(path)).Err()
		return nil, false
	}
	return docs, true
}

// generation returns the current eviction count for path. A missing key
// reads as zero.
func (c *Cache) generation(ctx context.Context, path string) (int64, bool) {
	if c.redis == nil || c.ttl == 0 {
		return 0, false
	}
	return readGeneration(ctx, c.redis, path)
}

type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readGeneration(ctx context.Context, r stringGetter, path string) (int64, bool) {
	gen, err := r.Get(ctx, snapshotGenerationKey(path)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, true
	}
	if err != nil {
		return 0, false
	}
	return gen, true
}

// store caches docs unless path was evicted since gen was read.
func (c *Cache) store(ctx context.Context, path string, gen int64, docs []Document) {
	data, err := encodeDocuments(docs)
	if err != nil {
		return
	}
	gk := snapshotGenerationKey(path)
	_ = c.redis.Watch(ctx, func(tx *redis.Tx) error {
		cur, ok := readGeneration(ctx, tx, path)
		if !ok || cur != gen {
			return nil
		}
		_, err := tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, snapshotCacheKey(path), data, c.ttl)
			return nil
		})
		return err
	}, gk)
}

// Evict drops the cached listing for path and invalidates listings that
// are still being read.
func (c *Cache) Evict(ctx context.Context, path string) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, snapshotGenerationKey(path))
		p.Del(ctx, snapshotCacheKey(path))
		return nil
	})
}

func snapshotCacheKey(path string) string {
	return "snapshot:" + path
}

func snapshotGenerationKey(path string) string {
	return "snapshot-gen:" + path
}
