package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/aussiebroadwan/gatehouse/internal/auth/store"
)

const DefaultKeyPrefix = "gatehouse:"

type Config struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// Cache is a store.Cache backed by a redis server. SetNX and
// DeleteIfEquals are single round trips, so they hold across processes.
type Cache struct {
	client    *goredis.Client
	keyPrefix string
}

// New connects to redis and verifies the connection with PING.
func New(ctx context.Context, cfg Config) (*Cache, error) {
	addr := cfg.Addr
	if addr == "" {
		addr = "localhost:6379"
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewWithClient(client, cfg.KeyPrefix), nil
}

// NewWithClient wraps an existing client. An empty prefix selects
// DefaultKeyPrefix.
func NewWithClient(client *goredis.Client, keyPrefix string) *Cache {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &Cache{client: client, keyPrefix: keyPrefix}
}

func (c *Cache) key(k string) string { return c.keyPrefix + k }

func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return val, nil
}

// TTL returns the remaining lifetime of key, zero when it never expires.
func (c *Cache) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := c.client.PTTL(ctx, c.key(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis pttl: %w", err)
	}
	// -2: no such key, -1: no expiry.
	switch {
	case d == -2:
		return 0, store.ErrNotFound
	case d < 0:
		return 0, nil
	}
	return d, nil
}

func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *Cache) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	ok, err := c.client.SetNX(ctx, c.key(key), value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

var deleteIfEqualsScript = goredis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
end
return 0
`)

func (c *Cache) DeleteIfEquals(ctx context.Context, key string, value []byte) (bool, error) {
	n, err := deleteIfEqualsScript.Run(ctx, c.client, []string{c.key(key)}, value).Int()
	if err != nil {
		return false, fmt.Errorf("redis compare-and-delete: %w", err)
	}
	return n == 1, nil
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Cache) Close() error { return c.client.Close() }

var _ store.Cache = (*Cache)(nil)
