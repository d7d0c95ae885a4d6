package memory

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/aussiebroadwan/gatehouse/internal/auth/store"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Cache is an in-process store.Cache. Expired entries are dropped lazily on
// access and in bulk by Sweep.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
	closed  bool
}

type Option func(*Cache)

// WithClock overrides the time source used for expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func New(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) deadline(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return c.now().Add(ttl)
}

// lookup returns the live entry for key. The caller holds mu.
func (c *Cache) lookup(key string) (entry, bool) {
	e, ok := c.entries[key]
	if !ok {
		return entry{}, false
	}
	if e.expired(c.now()) {
		delete(c.entries, key)
		return entry{}, false
	}
	return e, true
}

func (c *Cache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, store.ErrClosed
	}
	e, ok := c.lookup(key)
	if !ok {
		return nil, store.ErrNotFound
	}
	return bytes.Clone(e.value), nil
}

// TTL returns the remaining lifetime of key, zero when it never expires.
func (c *Cache) TTL(_ context.Context, key string) (time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.lookup(key)
	if !ok {
		return 0, store.ErrNotFound
	}
	if e.expiresAt.IsZero() {
		return 0, nil
	}
	return e.expiresAt.Sub(c.now()), nil
}

func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return store.ErrClosed
	}
	c.entries[key] = entry{value: bytes.Clone(value), expiresAt: c.deadline(ttl)}
	return nil
}

func (c *Cache) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false, store.ErrClosed
	}
	if _, ok := c.lookup(key); ok {
		return false, nil
	}
	c.entries[key] = entry{value: bytes.Clone(value), expiresAt: c.deadline(ttl)}
	return true, nil
}

func (c *Cache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return store.ErrClosed
	}
	delete(c.entries, key)
	return nil
}

func (c *Cache) DeleteIfEquals(_ context.Context, key string, value []byte) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false, store.ErrClosed
	}
	e, ok := c.lookup(key)
	if !ok || !bytes.Equal(e.value, value) {
		return false, nil
	}
	delete(c.entries, key)
	return true, nil
}

func (c *Cache) Ping(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return store.ErrClosed
	}
	return nil
}

// Sweep removes every expired entry and returns how many were dropped.
func (c *Cache) Sweep(context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	var n int64
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
			n++
		}
	}
	return n, nil
}

// Len reports the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.entries = make(map[string]entry)
	return nil
}

var (
	_ store.Cache   = (*Cache)(nil)
	_ store.Sweeper = (*Cache)(nil)
)
