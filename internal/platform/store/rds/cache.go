package rds

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned by Get when the key is absent
var ErrCacheMiss = errors.New("rds: cache miss")

// Cache is a namespaced JSON cache over a shared client.
// Keys are stored as "<prefix>:<key>".
type Cache struct {
	rds    *RDS
	prefix string
}

// NewCache returns a cache view with the given key prefix
func (r *RDS) NewCache(prefix string) *Cache {
	return &Cache{rds: r, prefix: prefix}
}

func (c *Cache) key(k string) string { return c.prefix + ":" + k }

// Get unmarshals the cached JSON value into out.
// Returns ErrCacheMiss when the key does not exist.
func (c *Cache) Get(ctx context.Context, key string, out any) error {
	raw, err := c.rds.Client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// Set marshals v as JSON and stores it with the given TTL.
// A zero TTL stores without expiry.
func (c *Cache) Set(ctx context.Context, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.rds.Client.Set(ctx, c.key(key), raw, ttl).Err()
}

// Delete removes a key; missing keys are not an error
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.rds.Client.Del(ctx, c.key(key)).Err()
}

// Exists reports whether the key is present
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.rds.Client.Exists(ctx, c.key(key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Increment atomically adds delta and returns the new value
func (c *Cache) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	return c.rds.Client.IncrBy(ctx, c.key(key), delta).Result()
}

// Expire sets a TTL on an existing key
func (c *Cache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return c.rds.Client.Expire(ctx, c.key(key), ttl).Err()
}

// TTL returns the remaining lifetime of a key
func (c *Cache) TTL(ctx context.Context, key string) (time.Duration, error) {
	return c.rds.Client.TTL(ctx, c.key(key)).Result()
}
