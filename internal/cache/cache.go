package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fintrack/fintrack/internal/ledger"
)

// DefaultTTL bounds how stale a cached view can get if an eviction is lost.
const DefaultTTL = time.Hour

// Cache is a Redis-backed cache-aside store for read views. A Cache with
// a nil client is valid and always loads from the source.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// New constructs a cache. client may be nil.
func New(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{client: client, ttl: ttl, logger: logger}
}

// Enabled reports whether a Redis client is configured.
func (c *Cache) Enabled() bool {
	return c != nil && c.client != nil
}

// Ping reports whether Redis is reachable.
func (c *Cache) Ping(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

// GetOrLoad returns the cached value under key, or calls load and caches
// its result. Cache failures are logged and never returned; only load
// errors reach the caller.
func GetOrLoad[T any](ctx context.Context, c *Cache, key string, load func(context.Context) (T, error)) (T, error) {
	if !c.Enabled() {
		return load(ctx)
	}

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached T
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
		c.failure(ctx, "decode cached view", err, key)
	case !errors.Is(err, redis.Nil):
		c.failure(ctx, "read cached view", err, key)
	}

	value, err := load(ctx)
	if err != nil {
		return value, err
	}

	payload, err := json.Marshal(value)
	if err != nil {
		c.failure(ctx, "encode view", err, key)
		return value, nil
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.failure(ctx, "store cached view", err, key)
	}
	return value, nil
}

// Delete evicts keys.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if !c.Enabled() || len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: evict %v: %w", ledger.ErrCache, keys, err)
	}
	return nil
}

// DeleteMatching evicts every key matching the glob pattern.
func (c *Cache) DeleteMatching(ctx context.Context, pattern string) error {
	if !c.Enabled() {
		return nil
	}
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 100 {
			if err := c.Delete(ctx, batch...); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("%w: scan %s: %w", ledger.ErrCache, pattern, err)
	}
	return c.Delete(ctx, batch...)
}

func (c *Cache) failure(ctx context.Context, op string, err error, key string) {
	c.logger.WarnContext(ctx, "cache "+op+" failed",
		slog.String("kind", string(ledger.KindCache)),
		slog.String("key", key),
		slog.Any("error", err),
	)
}
