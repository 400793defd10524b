package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions tune the cache client. Zero values keep the driver or URL
// defaults.
type RedisOptions struct {
	URL         string
	PoolSize    int
	DialTimeout time.Duration
	// OpTimeout bounds each read and write. Cache calls are best effort, so
	// it is kept well below the ledger's mutation timeout.
	OpTimeout time.Duration
}

// NewRedisClient configures a Redis client and verifies connectivity.
func NewRedisClient(ctx context.Context, o RedisOptions) (*redis.Client, error) {
	if o.URL == "" {
		return nil, fmt.Errorf("redis url is required")
	}

	opt, err := redis.ParseURL(o.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if o.PoolSize > 0 {
		opt.PoolSize = o.PoolSize
	}
	if o.DialTimeout > 0 {
		opt.DialTimeout = o.DialTimeout
	}
	if o.OpTimeout > 0 {
		opt.ReadTimeout = o.OpTimeout
		opt.WriteTimeout = o.OpTimeout
	}

	client := redis.NewClient(opt)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}
