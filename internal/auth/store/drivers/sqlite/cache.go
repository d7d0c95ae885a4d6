package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/gatehouse/internal/auth/store"
	_ "modernc.org/sqlite"
)

// Cache is a store.Cache persisted in a single sqlite table. Every
// operation is one statement, and the pool is limited to one connection so
// statements are serialised.
type Cache struct {
	db  *sql.DB
	dsn string
	now func() time.Time
}

type Option func(*Cache)

// WithClock overrides the time source used for expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New opens the database at dsn and applies the embedded migrations.
func New(dsn string, opts ...Option) (*Cache, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if _, err := db.ExecContext(context.Background(), `PRAGMA busy_timeout = 5000;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	c := &Cache{db: db, dsn: dsn, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.ApplyMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrations: %w", err)
	}
	db.SetMaxOpenConns(1)

	return c, nil
}

func (c *Cache) Close() error { return c.db.Close() }

// Ping verifies the database connection is still alive.
func (c *Cache) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Cache) nowMillis() int64 { return c.now().UnixMilli() }

func (c *Cache) expiresAt(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return c.now().Add(ttl).UnixMilli()
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := c.db.QueryRowContext(ctx,
		`SELECT value FROM cache_entries WHERE key = ? AND (expires_at = 0 OR expires_at > ?)`,
		key, c.nowMillis(),
	).Scan(&value)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return value, nil
}

// TTL returns the remaining lifetime of key, zero when it never expires.
func (c *Cache) TTL(ctx context.Context, key string) (time.Duration, error) {
	now := c.nowMillis()
	var expires int64
	err := c.db.QueryRowContext(ctx,
		`SELECT expires_at FROM cache_entries WHERE key = ? AND (expires_at = 0 OR expires_at > ?)`,
		key, now,
	).Scan(&expires)
	if err != nil {
		return 0, mapNotFound(err)
	}
	if expires == 0 {
		return 0, nil
	}
	return time.Duration(expires-now) * time.Millisecond, nil
}

func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO cache_entries (key, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, c.expiresAt(ttl),
	)
	return err
}

// SetNX inserts the entry, or takes over a row whose entry has expired.
func (c *Cache) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	res, err := c.db.ExecContext(ctx,
		`INSERT INTO cache_entries (key, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at
		 WHERE cache_entries.expires_at != 0 AND cache_entries.expires_at <= ?`,
		key, value, c.expiresAt(ttl), c.nowMillis(),
	)
	if err != nil {
		return false, err
	}
	return affected(res)
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key)
	return err
}

func (c *Cache) DeleteIfEquals(ctx context.Context, key string, value []byte) (bool, error) {
	res, err := c.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE key = ? AND value = ? AND (expires_at = 0 OR expires_at > ?)`,
		key, value, c.nowMillis(),
	)
	if err != nil {
		return false, err
	}
	return affected(res)
}

// Sweep deletes expired rows.
func (c *Cache) Sweep(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE expires_at != 0 AND expires_at <= ?`,
		c.nowMillis(),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

var (
	_ store.Cache   = (*Cache)(nil)
	_ store.Sweeper = (*Cache)(nil)
)
