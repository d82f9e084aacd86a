// Package redis connects the rate limiter to Redis.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"mountpass/internal/platform/config"
)

// Client is a go-redis client that also serves readiness checks.
type Client struct {
	*redis.Client
}

// New connects and pings. A blank URL means Redis is not configured and
// yields a nil client without error.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	opts, err := options(cfg)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Client{Client: client}, nil
}

// options layers the pool settings over what the URL specifies. Zero values
// keep the go-redis defaults.
func options(cfg config.RedisConfig) (*redis.Options, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
	return opts, nil
}

// Health pings the server; used by /readyz.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}
