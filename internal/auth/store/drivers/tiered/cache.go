package tiered

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/gatehouse/internal/auth/store"
	"github.com/aussiebroadwan/gatehouse/internal/auth/store/drivers/memory"
)

// DefaultL1TTL bounds how long an entry lives in the in-process layer.
const DefaultL1TTL = 30 * time.Second

type ttlReader interface {
	TTL(ctx context.Context, key string) (time.Duration, error)
}

// Cache layers an in-process memory cache over a shared L2. L2 is the
// authority: SetNX and DeleteIfEquals are decided there, and writes land
// in L2 before L1. Reads are served from L1 when present, so a session
// read survives an L2 outage for up to the L1 TTL.
type Cache struct {
	l1    *memory.Cache
	l2    store.Cache
	l1TTL time.Duration
}

type Option func(*Cache)

func WithL1TTL(d time.Duration) Option {
	return func(c *Cache) { c.l1TTL = d }
}

func New(l1 *memory.Cache, l2 store.Cache, opts ...Option) *Cache {
	c := &Cache{l1: l1, l2: l2, l1TTL: DefaultL1TTL}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) l1Lifetime(ttl time.Duration) time.Duration {
	if ttl <= 0 || ttl > c.l1TTL {
		return c.l1TTL
	}
	return ttl
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	if v, err := c.l1.Get(ctx, key); err == nil {
		return v, nil
	}

	v, err := c.l2.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	ttl := c.l1TTL
	if r, ok := c.l2.(ttlReader); ok {
		if remaining, err := r.TTL(ctx, key); err == nil {
			ttl = c.l1Lifetime(remaining)
		} else if errors.Is(err, store.ErrNotFound) {
			return v, nil
		}
	}
	_ = c.l1.Set(ctx, key, v, ttl)
	return v, nil
}

func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.l2.Set(ctx, key, value, ttl); err != nil {
		_ = c.l1.Delete(ctx, key)
		return err
	}
	return c.l1.Set(ctx, key, value, c.l1Lifetime(ttl))
}

// SetNX never consults L1: a replay check must see every process's
// markers.
func (c *Cache) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	return c.l2.SetNX(ctx, key, value, ttl)
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	_ = c.l1.Delete(ctx, key)
	return c.l2.Delete(ctx, key)
}

func (c *Cache) DeleteIfEquals(ctx context.Context, key string, value []byte) (bool, error) {
	ok, err := c.l2.DeleteIfEquals(ctx, key, value)
	if err != nil {
		return false, err
	}
	_ = c.l1.Delete(ctx, key)
	return ok, nil
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.l2.Ping(ctx)
}

// Sweep sweeps L1 and, when it supports it, L2.
func (c *Cache) Sweep(ctx context.Context) (int64, error) {
	n, _ := c.l1.Sweep(ctx)
	if s, ok := c.l2.(store.Sweeper); ok {
		m, err := s.Sweep(ctx)
		return n + m, err
	}
	return n, nil
}

func (c *Cache) Close() error {
	return errors.Join(c.l1.Close(), c.l2.Close())
}

var (
	_ store.Cache   = (*Cache)(nil)
	_ store.Sweeper = (*Cache)(nil)
)
