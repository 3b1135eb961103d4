// Package cache keeps encoded record snapshots in Redis between reads.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/and161185/car-registry/internal/model"
)

const keyPrefix = "vr:rec:"

// Cache stores encoded committed records by address.
type Cache interface {
	// Get returns the cached bytes and whether they were present.
	Get(ctx context.Context, addr model.Address) ([]byte, bool, error)
	Set(ctx context.Context, addr model.Address, data []byte) error
	// Invalidate drops every listed address.
	Invalidate(ctx context.Context, addrs ...model.Address) error
}

// Key returns the Redis key of addr.
func Key(addr model.Address) string { return keyPrefix + addr.String() }

// Redis is a go-redis backed Cache.
type Redis struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedis wraps client; entries expire after ttl.
func NewRedis(client redis.Cmdable, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

// Dial connects to url and checks the connection. An empty url returns nil.
func Dial(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

func (c *Redis) Get(ctx context.Context, addr model.Address) ([]byte, bool, error) {
	b, err := c.client.Get(ctx, Key(addr)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (c *Redis) Set(ctx context.Context, addr model.Address, data []byte) error {
	return c.client.Set(ctx, Key(addr), data, c.ttl).Err()
}

func (c *Redis) Invalidate(ctx context.Context, addrs ...model.Address) error {
	if len(addrs) == 0 {
		return nil
	}
	keys := make([]string, len(addrs))
	for i, a := range addrs {
		keys[i] = Key(a)
	}
	return c.client.Del(ctx, keys...).Err()
}

// Nop caches nothing.
type Nop struct{}

func (Nop) Get(context.Context, model.Address) ([]byte, bool, error) { return nil, false, nil }
func (Nop) Set(context.Context, model.Address, []byte) error         { return nil }
func (Nop) Invalidate(context.Context, ...model.Address) error       { return nil }
