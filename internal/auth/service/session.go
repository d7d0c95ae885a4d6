package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/gatehouse/internal/auth/directory"
	"github.com/aussiebroadwan/gatehouse/internal/auth/domain"
	"github.com/aussiebroadwan/gatehouse/internal/auth/store"
	"github.com/aussiebroadwan/gatehouse/pkg/cryptox"
	"github.com/aussiebroadwan/gatehouse/pkg/jwtx"
	"github.com/aussiebroadwan/gatehouse/pkg/slogx"
)

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")

	// ErrUnavailable wraps cache and directory failures.
	ErrUnavailable = errors.New("temporarily_unavailable")
)

// SessionService runs the login, refresh and logout protocol.
type SessionService struct {
	Tokens    *jwtx.TokenService
	Store     *store.TokenStore
	Directory directory.Directory
	Hasher    *cryptox.PasswordHasher

	// ClockSkew is added to the refresh TTL when storing a session.
	ClockSkew time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

func (s *SessionService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *SessionService) sessionTTL() time.Duration {
	return s.Tokens.RefreshTTL() + s.ClockSkew
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

// Login checks username and password against the directory and opens a
// session. With boundKey set the pair is DPoP bound to it. A failed login
// leaves no state behind.
func (s *SessionService) Login(ctx context.Context, username, password string, boundKey *jwtx.JWK) (*jwtx.TokenPair, error) {
	l := slogx.FromContext(ctx)

	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	found, err := s.Directory.FetchUser(ctx, username)
	if err != nil {
		l.Error("directory lookup failed", "error", err)
		return nil, unavailable(err)
	}

	user := s.matchUser(found.Users, username, password)
	if user == nil {
		l.Info("login rejected", slog.String("username", username))
		return nil, ErrInvalidCredentials
	}

	custom, err := json.Marshal(user.Metadata())
	if err != nil {
		return nil, fmt.Errorf("encode custom claims: %w", err)
	}

	pair, err := s.Tokens.Create(user.Subject(), custom, boundKey)
	if err != nil {
		return nil, err
	}

	rec := &domain.SessionRecord{
		JTI:          pair.JTI,
		TokenType:    pair.TokenType,
		RefreshToken: pair.RefreshToken,
		Subject:      user.Subject(),
		Custom:       custom,
		BoundKey:     boundKey,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.Store.StoreSession(ctx, pair.JTI, rec, s.sessionTTL()); err != nil {
		l.Error("failed to store session", "jti", pair.JTI, "error", err)
		return nil, unavailable(err)
	}

	l.Info("session opened",
		slog.String("sub", rec.Subject),
		slog.String("jti", pair.JTI),
		slog.String("token_type", pair.TokenType))
	return pair, nil
}

// matchUser picks the entry for username whose credential matches
// password. Hashed entries are checked with argon2id, plaintext ones with
// a constant time compare.
func (s *SessionService) matchUser(users []domain.User, username, password string) *domain.User {
	for i := range users {
		u := &users[i]
		if !strings.EqualFold(u.Username, username) {
			continue
		}
		switch {
		case u.PasswordHash != "":
			if s.Hasher != nil && s.Hasher.Verify(password, u.PasswordHash) == nil {
				return u
			}
		case u.Password != "":
			if cryptox.EqualSecret(u.Password, password) {
				return u
			}
		}
	}
	return nil
}

// Refresh rotates the session identified by refreshToken. The old record
// is claimed with a compare-and-delete, so of two concurrent refreshes
// with the same token exactly one succeeds and the other gets
// KindTokenNotFound. A DPoP session must present its original key, and
// the new pair is bound to it again.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string, boundKey *jwtx.JWK) (*jwtx.TokenPair, error) {
	l := slogx.FromContext(ctx)

	res, err := s.Tokens.ValidateRefresh(refreshToken, true)
	if err != nil {
		return nil, err
	}
	claims := res.Claims
	jti := claims.ID

	rec, err := s.Store.GetSession(ctx, jti)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, jwtx.Reject(jwtx.KindTokenNotFound, "refresh token is not active")
		}
		l.Error("failed to load session", "jti", jti, "error", err)
		return nil, unavailable(err)
	}

	if !cryptox.EqualSecret(rec.RefreshToken, refreshToken) {
		return nil, jwtx.Reject(jwtx.KindTokenMismatch, "refresh token does not match the session")
	}

	var key *jwtx.JWK
	if rec.Bound() || claims.Bound() {
		if err := checkBinding(rec, claims, boundKey); err != nil {
			return nil, err
		}
		key = boundKey
	}

	pair, err := s.Tokens.Create(rec.Subject, rec.Custom, key)
	if err != nil {
		return nil, err
	}

	next := &domain.SessionRecord{
		JTI:          pair.JTI,
		TokenType:    pair.TokenType,
		RefreshToken: pair.RefreshToken,
		Subject:      rec.Subject,
		Custom:       rec.Custom,
		BoundKey:     key,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.Store.ReplaceSession(ctx, jti, refreshToken, pair.JTI, next, s.sessionTTL()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			l.Info("refresh lost rotation race", slog.String("jti", jti))
			return nil, jwtx.Reject(jwtx.KindTokenNotFound, "refresh token is not active")
		}
		l.Error("failed to rotate session", "jti", jti, "error", err)
		return nil, unavailable(err)
	}

	l.Info("session refreshed",
		slog.String("sub", rec.Subject),
		slog.String("jti", pair.JTI),
		slog.String("previous_jti", jti))
	return pair, nil
}

func checkBinding(rec *domain.SessionRecord, claims *jwtx.TokenClaims, proofKey *jwtx.JWK) error {
	if proofKey == nil {
		return jwtx.Reject(jwtx.KindJwkMismatch, "a DPoP proof is required to refresh this session")
	}
	jkt, err := proofKey.Thumbprint()
	if err != nil {
		return jwtx.Reject(jwtx.KindJwkMismatch, "proof key cannot be thumbprinted")
	}
	if !claims.Bound() || !strings.EqualFold(claims.Cnf.JKT, jkt) {
		return jwtx.Reject(jwtx.KindJwkMismatch, "proof key does not match the session")
	}
	if rec.BoundKey != nil && !rec.BoundKey.Equal(*proofKey) {
		return jwtx.Reject(jwtx.KindJwkMismatch, "proof key does not match the session")
	}
	return nil
}

// Logout revokes the session of refreshToken. It is best effort: invalid
// tokens and store failures are logged, never returned.
func (s *SessionService) Logout(ctx context.Context, refreshToken string) {
	l := slogx.FromContext(ctx)

	res, err := s.Tokens.ValidateRefresh(refreshToken, false)
	if err != nil {
		l.Debug("logout with unusable token", slog.String("kind", string(jwtx.KindOf(err))))
		return
	}

	if err := s.Store.DeleteSession(ctx, res.Claims.ID); err != nil {
		l.Error("failed to delete session", "jti", res.Claims.ID, "error", err)
		return
	}
	l.Info("session closed", slog.String("sub", res.Claims.Subject), slog.String("jti", res.Claims.ID))
}

// Profile looks up the user behind a subject for the identity endpoint.
func (s *SessionService) Profile(ctx context.Context, subject string) (*domain.UserProfile, error) {
	id, err := strconv.ParseInt(subject, 10, 64)
	if err != nil {
		return nil, directory.ErrUserNotFound
	}
	u, err := s.Directory.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, directory.ErrUserNotFound) {
			return nil, err
		}
		return nil, unavailable(err)
	}
	p := u.Profile()
	return &p, nil
}
