package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("store: not found")
	ErrClosed   = errors.New("store: closed")
)

// Cache is the key/value capability every driver (memory, redis, sqlite,
// tiered) implements. Values are opaque bytes with a TTL. Driver failures
// are returned as errors and never reported as ErrNotFound.
type Cache interface {
	// Get returns ErrNotFound when the key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// SetNX stores value only if key is absent or expired and reports
	// whether it did. It is atomic per key.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	Delete(ctx context.Context, key string) error

	// DeleteIfEquals removes key only while it still holds value and
	// reports whether it did. It is atomic per key.
	DeleteIfEquals(ctx context.Context, key string, value []byte) (bool, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	Close() error
}

// Sweeper is implemented by drivers that keep expired entries around until
// they are swept.
type Sweeper interface {
	Sweep(ctx context.Context) (int64, error)
}
