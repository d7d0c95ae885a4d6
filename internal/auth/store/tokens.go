package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/gatehouse/internal/auth/domain"
)

const (
	sessionPrefix = "token-jti:"
	proofPrefix   = "dpop-jti:"
)

// TokenStore keeps session records and consumed proof jtis on top of a
// Cache.
type TokenStore struct {
	cache Cache
}

func NewTokenStore(c Cache) *TokenStore {
	return &TokenStore{cache: c}
}

// Cache exposes the underlying driver for health checks and sweeping.
func (s *TokenStore) Cache() Cache { return s.cache }

// StoreSession writes rec under jti, replacing any previous record.
func (s *TokenStore) StoreSession(ctx context.Context, jti string, rec *domain.SessionRecord, ttl time.Duration) error {
	buf, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("store: encode session: %w", err)
	}
	return s.cache.Set(ctx, sessionPrefix+jti, buf, ttl)
}

// GetSession returns ErrNotFound when no record exists for jti.
func (s *TokenStore) GetSession(ctx context.Context, jti string) (*domain.SessionRecord, error) {
	rec, _, err := s.load(ctx, jti)
	return rec, err
}

func (s *TokenStore) load(ctx context.Context, jti string) (*domain.SessionRecord, []byte, error) {
	buf, err := s.cache.Get(ctx, sessionPrefix+jti)
	if err != nil {
		return nil, nil, err
	}
	var rec domain.SessionRecord
	if err := json.Unmarshal(buf, &rec); err != nil {
		return nil, nil, fmt.Errorf("store: decode session %s: %w", jti, err)
	}
	return &rec, buf, nil
}

// DeleteSession is idempotent.
func (s *TokenStore) DeleteSession(ctx context.Context, jti string) error {
	return s.cache.Delete(ctx, sessionPrefix+jti)
}

// ReplaceSession rotates a session. The record under oldJTI is deleted
// only if it still carries refreshToken, and before rec is written under
// newJTI. Of several concurrent callers for the same oldJTI at most one
// succeeds; the others get ErrNotFound.
func (s *TokenStore) ReplaceSession(ctx context.Context, oldJTI, refreshToken, newJTI string, rec *domain.SessionRecord, ttl time.Duration) error {
	current, raw, err := s.load(ctx, oldJTI)
	if err != nil {
		return err
	}
	if current.RefreshToken != refreshToken {
		return ErrNotFound
	}

	claimed, err := s.cache.DeleteIfEquals(ctx, sessionPrefix+oldJTI, raw)
	if err != nil {
		return err
	}
	if !claimed {
		return ErrNotFound
	}

	if err := s.StoreSession(ctx, newJTI, rec, ttl); err != nil {
		return fmt.Errorf("store: write rotated session: %w", err)
	}
	return nil
}

// MarkProofSeen records a proof jti for ttl. It returns false when the jti
// was already recorded, which means the proof is a replay.
func (s *TokenStore) MarkProofSeen(ctx context.Context, jti string, ttl time.Duration) (bool, error) {
	if jti == "" {
		return false, errors.New("store: empty proof jti")
	}
	return s.cache.SetNX(ctx, proofPrefix+jti, []byte{'1'}, ttl)
}

// Ping checks the driver.
func (s *TokenStore) Ping(ctx context.Context) error {
	return s.cache.Ping(ctx)
}
