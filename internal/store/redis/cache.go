// Package redis backs the resilience response cache with a shared Redis
// instance, so multiple engine processes (scanner and monitor) reuse each
// other's broker responses. Satisfies resilience.ResponseCache.
package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

const (
	keyPrefix   = "engine:cache:"
	pingTimeout = 5 * time.Second
	opTimeout   = 2 * time.Second
)

// Config configures the Redis cache.
type Config struct {
	Addr     string // e.g. "localhost:6379"
	Password string
	DB       int
}

// Cache is a Redis-backed TTL response cache.
type Cache struct {
	client *goredis.Client
}

// Client returns the underlying Redis client for health checks.
func (c *Cache) Client() *goredis.Client { return c.client }

// New connects to Redis and pings the server.
func New(cfg Config) (*Cache, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Cache{client: client}, nil
}

// Get returns the cached body for key, or (nil, false). Redis failures read
// as misses so a cache outage never blocks the engine.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	data, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if err == goredis.Nil {
		return nil, false
	}
	if err != nil {
		log.Printf("[redis] cache get %s: %v", key, err)
		return nil, false
	}
	return data, true
}

// Set stores value under key for ttl. Failures are logged and dropped.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := c.client.Set(ctx, keyPrefix+key, value, ttl).Err(); err != nil {
		log.Printf("[redis] cache set %s: %v", key, err)
	}
}

// Close closes the Redis client.
func (c *Cache) Close() error {
	return c.client.Close()
}
