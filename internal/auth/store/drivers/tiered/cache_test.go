package tiered_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/gatehouse/internal/auth/store"
	"github.com/aussiebroadwan/gatehouse/internal/auth/store/drivers/memory"
	"github.com/aussiebroadwan/gatehouse/internal/auth/store/drivers/tiered"
	"github.com/aussiebroadwan/gatehouse/internal/auth/store/storetest"
)

var errDown = errors.New("l2 down")

// flakyCache wraps a memory cache and fails every call while down is set.
type flakyCache struct {
	*memory.Cache
	down bool
}

func (f *flakyCache) Get(ctx context.Context, key string) ([]byte, error) {
	if f.down {
		return nil, errDown
	}
	return f.Cache.Get(ctx, key)
}

func (f *flakyCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if f.down {
		return errDown
	}
	return f.Cache.Set(ctx, key, value, ttl)
}

func (f *flakyCache) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if f.down {
		return false, errDown
	}
	return f.Cache.SetNX(ctx, key, value, ttl)
}

func (f *flakyCache) DeleteIfEquals(ctx context.Context, key string, value []byte) (bool, error) {
	if f.down {
		return false, errDown
	}
	return f.Cache.DeleteIfEquals(ctx, key, value)
}

func TestCache(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Cache {
		return tiered.New(memory.New(), memory.New())
	})
}

func TestCache_BackfillsL1(t *testing.T) {
	l1, l2 := memory.New(), memory.New()
	c := tiered.New(l1, l2, tiered.WithL1TTL(time.Minute))
	ctx := t.Context()

	require.NoError(t, l2.Set(ctx, "k", []byte("v"), 10*time.Second))

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("v"), got)

	ttl, err := l1.TTL(ctx, "k")
	require.NoError(t, err)
	require.LessOrEqual(t, ttl, 10*time.Second, "L1 copy never outlives L2")
}

func TestCache_SessionReadSurvivesL2Outage(t *testing.T) {
	l2 := &flakyCache{Cache: memory.New()}
	c := tiered.New(memory.New(), l2)
	ctx := t.Context()

	require.NoError(t, c.Set(ctx, "token-jti:abc", []byte("record"), time.Minute))

	l2.down = true
	got, err := c.Get(ctx, "token-jti:abc")
	require.NoError(t, err)
	require.Equal(t, []byte("record"), got)

	_, err = c.Get(ctx, "token-jti:other")
	require.ErrorIs(t, err, errDown)
	require.NotErrorIs(t, err, store.ErrNotFound)
}

func TestCache_ReplayCheckFailsClosed(t *testing.T) {
	l2 := &flakyCache{Cache: memory.New()}
	c := tiered.New(memory.New(), l2)
	ctx := t.Context()

	l2.down = true
	ok, err := c.SetNX(ctx, "dpop-jti:x", []byte("1"), time.Minute)
	require.ErrorIs(t, err, errDown)
	require.False(t, ok)
}

func TestCache_FailedWriteEvictsL1(t *testing.T) {
	l2 := &flakyCache{Cache: memory.New()}
	l1 := memory.New()
	c := tiered.New(l1, l2)
	ctx := t.Context()

	require.NoError(t, c.Set(ctx, "k", []byte("v1"), time.Minute))
	l2.down = true
	require.ErrorIs(t, c.Set(ctx, "k", []byte("v2"), time.Minute), errDown)

	_, err := l1.Get(ctx, "k")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestCache_ClaimInvalidatesL1(t *testing.T) {
	l1, l2 := memory.New(), memory.New()
	c := tiered.New(l1, l2)
	ctx := t.Context()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	ok, err := c.DeleteIfEquals(ctx, "k", []byte("v"))
	require.NoError(t, err)
	require.True(t, ok)

	_, err = l1.Get(ctx, "k")
	require.ErrorIs(t, err, store.ErrNotFound)
}
