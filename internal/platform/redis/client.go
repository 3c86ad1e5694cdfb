// Package redis opens the shared go-redis client used for pending e-sign
// references and rate-limit counters.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"onboard/internal/platform/config"
)

const defaultDialTimeout = 5 * time.Second

// Client is a connected go-redis client. Stores take the embedded
// *redis.Client directly.
type Client struct {
	*redis.Client
}

// New connects to cfg.URL and pings it. An empty URL means Redis is not
// configured and returns (nil, nil); callers fall back to in-memory stores.
func New(cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	opts, err := options(cfg)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), opts.DialTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{Client: rdb}, nil
}

// options overlays the non-zero pool and timeout settings on the URL.
func options(cfg config.RedisConfig) (*redis.Options, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.MinIdleConns = cfg.MinIdleConns
	overlay := func(dst *time.Duration, v time.Duration) {
		if v > 0 {
			*dst = v
		}
	}
	overlay(&opts.DialTimeout, cfg.DialTimeout)
	overlay(&opts.ReadTimeout, cfg.ReadTimeout)
	overlay(&opts.WriteTimeout, cfg.WriteTimeout)
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = defaultDialTimeout
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	return opts, nil
}

// Health is the readiness check registered under "redis".
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}
