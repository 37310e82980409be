// Package cache provides shared stores for fetched windows.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

// Config configures the Redis cache.
type Config struct {
	Addr     string // e.g. "localhost:6379"
	Password string
	DB       int
	Prefix   string // prepended to every key, default "wedge:"
}

// RedisCache implements collector.Cache on top of Redis string keys.
type RedisCache struct {
	client *goredis.Client
	prefix string
}

// NewRedis connects to Redis and pings the server.
func NewRedis(cfg Config) (*RedisCache, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisWithClient(client, cfg.Prefix), nil
}

// NewRedisWithClient wraps an existing client without pinging it.
func NewRedisWithClient(client *goredis.Client, prefix string) *RedisCache {
	if prefix == "" {
		prefix = "wedge:"
	}
	return &RedisCache{client: client, prefix: prefix}
}

// Client returns the underlying Redis client for health checks.
func (c *RedisCache) Client() *goredis.Client { return c.client }

// Get returns the value stored under key. A missing key is not an error.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, true, nil
}

// Set stores val under key for ttl. A zero ttl keeps the key forever.
func (c *RedisCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+key, val, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
