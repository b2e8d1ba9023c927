// Package rds provides a Redis client used for caching and pub/sub fan-out
package rds

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Config configures redis connectivity
type Config struct {
	Addr     string
	DB       int
	Password string
	PoolSize int
}

// RDS is a redis client wrapper exposing the underlying client plus
// the small pub/sub surface the resolution bus needs
type RDS struct {
	Client *redis.Client
}

var newClient = redis.NewClient

// Open creates a new RDS client and verifies connectivity
func Open(ctx context.Context, cfg Config) (*RDS, error) {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		DB:       cfg.DB,
		Password: cfg.Password,
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	c := newClient(opts)
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, err
	}
	return &RDS{Client: c}, nil
}

// Ping verifies connectivity
func (r *RDS) Ping(ctx context.Context) error {
	return r.Client.Ping(ctx).Err()
}

// Publish sends a payload on a channel
func (r *RDS) Publish(ctx context.Context, channel string, payload []byte) error {
	return r.Client.Publish(ctx, channel, payload).Err()
}

// Subscribe opens a subscription on the given channels.
// Callers own the returned PubSub and must Close it.
func (r *RDS) Subscribe(ctx context.Context, channels ...string) *redis.PubSub {
	return r.Client.Subscribe(ctx, channels...)
}

// Close closes the client
func (r *RDS) Close() error {
	if r == nil || r.Client == nil {
		return nil
	}
	return r.Client.Close()
}
