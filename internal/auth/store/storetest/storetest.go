// Package storetest holds the behaviour every store.Cache driver must
// share. Driver packages call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/gatehouse/internal/auth/domain"
	"github.com/aussiebroadwan/gatehouse/internal/auth/store"
	"github.com/aussiebroadwan/gatehouse/pkg/jwtx"
)

// Contenders is the number of goroutines racing in the concurrency tests.
const Contenders = 100

// Run exercises a fresh cache from newCache in every subtest.
func Run(t *testing.T, newCache func(t *testing.T) store.Cache) {
	t.Helper()

	t.Run("GetMissing", func(t *testing.T) {
		c := newCache(t)
		_, err := c.Get(t.Context(), "missing")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("SetGetDelete", func(t *testing.T) {
		c := newCache(t)
		ctx := t.Context()

		require.NoError(t, c.Set(ctx, "k", []byte("v1"), time.Minute))
		got, err := c.Get(ctx, "k")
		require.NoError(t, err)
		require.Equal(t, []byte("v1"), got)

		require.NoError(t, c.Set(ctx, "k", []byte("v2"), time.Minute))
		got, err = c.Get(ctx, "k")
		require.NoError(t, err)
		require.Equal(t, []byte("v2"), got)

		require.NoError(t, c.Delete(ctx, "k"))
		_, err = c.Get(ctx, "k")
		require.ErrorIs(t, err, store.ErrNotFound)

		require.NoError(t, c.Delete(ctx, "k"), "delete is idempotent")
	})

	t.Run("SetNX", func(t *testing.T) {
		c := newCache(t)
		ctx := t.Context()

		ok, err := c.SetNX(ctx, "nx", []byte("first"), time.Minute)
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = c.SetNX(ctx, "nx", []byte("second"), time.Minute)
		require.NoError(t, err)
		require.False(t, ok)

		got, err := c.Get(ctx, "nx")
		require.NoError(t, err)
		require.Equal(t, []byte("first"), got)
	})

	t.Run("DeleteIfEquals", func(t *testing.T) {
		c := newCache(t)
		ctx := t.Context()

		require.NoError(t, c.Set(ctx, "cad", []byte("a"), time.Minute))

		ok, err := c.DeleteIfEquals(ctx, "cad", []byte("b"))
		require.NoError(t, err)
		require.False(t, ok)

		ok, err = c.DeleteIfEquals(ctx, "cad", []byte("a"))
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = c.DeleteIfEquals(ctx, "cad", []byte("a"))
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("Ping", func(t *testing.T) {
		require.NoError(t, newCache(t).Ping(t.Context()))
	})

	t.Run("ConcurrentMarkProofSeen", func(t *testing.T) {
		tokens := store.NewTokenStore(newCache(t))
		wins := race(t, func(ctx context.Context) (bool, error) {
			return tokens.MarkProofSeen(ctx, "proof-jti", 10*time.Minute)
		})
		require.EqualValues(t, 1, wins)
	})

	t.Run("ConcurrentReplaceSession", func(t *testing.T) {
		tokens := store.NewTokenStore(newCache(t))
		ctx := t.Context()

		old := &domain.SessionRecord{
			JTI:          "old",
			TokenType:    jwtx.TokenTypeBearer,
			RefreshToken: "refresh-old",
			Subject:      "1",
		}
		require.NoError(t, tokens.StoreSession(ctx, "old", old, time.Minute))

		var n atomic.Int64
		wins := race(t, func(ctx context.Context) (bool, error) {
			jti := fmt.Sprintf("new-%d", n.Add(1))
			next := &domain.SessionRecord{JTI: jti, TokenType: jwtx.TokenTypeBearer, RefreshToken: "refresh-" + jti, Subject: "1"}
			err := tokens.ReplaceSession(ctx, "old", "refresh-old", jti, next, time.Minute)
			if errors.Is(err, store.ErrNotFound) {
				return false, nil
			}
			return err == nil, err
		})
		require.EqualValues(t, 1, wins)

		_, err := tokens.GetSession(ctx, "old")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("ReplaceSessionMismatch", func(t *testing.T) {
		tokens := store.NewTokenStore(newCache(t))
		ctx := t.Context()

		rec := &domain.SessionRecord{JTI: "s", TokenType: jwtx.TokenTypeBearer, RefreshToken: "right", Subject: "1"}
		require.NoError(t, tokens.StoreSession(ctx, "s", rec, time.Minute))

		err := tokens.ReplaceSession(ctx, "s", "wrong", "s2", rec, time.Minute)
		require.ErrorIs(t, err, store.ErrNotFound)

		got, err := tokens.GetSession(ctx, "s")
		require.NoError(t, err)
		require.Equal(t, "right", got.RefreshToken)
	})
}

// race runs fn from Contenders goroutines released together and returns
// how many reported true.
func race(t *testing.T, fn func(ctx context.Context) (bool, error)) int64 {
	t.Helper()

	var (
		wins  atomic.Int64
		wg    sync.WaitGroup
		start = make(chan struct{})
		errs  = make(chan error, Contenders)
	)
	for range Contenders {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			ok, err := fn(t.Context())
			if err != nil {
				errs <- err
				return
			}
			if ok {
				wins.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	return wins.Load()
}
