// Package redis backs the claims subsystem's volatile tier with go-redis/v9:
// the discovery and balance caches plus the pub/sub signal bus that fans
// invalidations out to presentation clients. Everything stored here is
// disposable; the ledger remains the source of truth and a cold start only
// costs one extra discovery pass.
package redis

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ClientConfig carries the connection settings for the cache tier.
type ClientConfig struct {
	Addr       string
	Password   string
	DB         int
	PoolSize   int
	MaxRetries int
	TLSEnabled bool
}

// Client owns the shared go-redis connection that the caches and the signal
// bus are built on.
type Client struct {
	rdb *redis.Client
}

// New connects to Redis and verifies the connection with a ping, so a bad
// address or credential fails at wire time rather than on the first cache
// read.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	opts := &redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		PoolSize:   cfg.PoolSize,
		MaxRetries: cfg.MaxRetries,
	}

	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	rdb := redis.NewClient(opts)

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Ping probes the connection, for health checks.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Underlying exposes the driver client the cache and bus implementations in
// this package operate on.
func (c *Client) Underlying() *redis.Client {
	return c.rdb
}
