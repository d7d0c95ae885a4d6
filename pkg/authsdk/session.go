package authsdk

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aussiebroadwan/gatehouse/pkg/jwtx"
)

// refreshLeeway is how long before expiry the session refreshes.
const refreshLeeway = 10 * time.Second

// ErrSessionClosed is returned once Logout has been called.
var ErrSessionClosed = errors.New("authsdk: session is logged out")

// Session represents an authenticated session with automatic token refresh.
// All Session methods automatically handle token expiration and refresh when needed.
type Session struct {
	client *SDKClient

	mu           sync.RWMutex
	tokenType    string
	accessToken  string
	refreshToken string
	expiresAt    time.Time
	closed       bool
}

// newSession creates a new authenticated session from a token response.
func newSession(client *SDKClient, tokenResp *TokenResponse) *Session {
	s := &Session{client: client}
	s.apply(tokenResp)
	return s
}

func (s *Session) apply(tokenResp *TokenResponse) {
	s.tokenType = tokenResp.TokenType
	if s.tokenType == "" {
		s.tokenType = jwtx.TokenTypeBearer
	}
	s.accessToken = tokenResp.AccessToken
	s.refreshToken = tokenResp.RefreshToken
	s.expiresAt = time.Now().Add(time.Duration(tokenResp.ExpiresIn)*time.Second - refreshLeeway)
}

// getValidToken returns a valid access token, automatically refreshing if expired.
func (s *Session) getValidToken(ctx context.Context) (tokenType, token string, err error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return "", "", ErrSessionClosed
	}
	if time.Now().Before(s.expiresAt) {
		tokenType, token = s.tokenType, s.accessToken
		s.mu.RUnlock()
		return tokenType, token, nil
	}
	s.mu.RUnlock()

	// Token expired, need to refresh
	s.mu.Lock()
	defer s.mu.Unlock()

	// Another goroutine may have refreshed while we waited for the lock.
	if s.closed {
		return "", "", ErrSessionClosed
	}
	if time.Now().Before(s.expiresAt) {
		return s.tokenType, s.accessToken, nil
	}
	if s.refreshToken == "" {
		return "", "", errors.New("access token expired and no refresh token available")
	}

	tokenResp, err := s.client.Refresh(ctx, s.refreshToken)
	if err != nil {
		return "", "", fmt.Errorf("failed to refresh token: %w", err)
	}
	s.apply(tokenResp)

	return s.tokenType, s.accessToken, nil
}

// ForceRefresh rotates the token pair now, regardless of expiry.
func (s *Session) ForceRefresh(ctx context.Context) error {
	s.mu.Lock()
	s.expiresAt = time.Time{}
	s.mu.Unlock()

	_, _, err := s.getValidToken(ctx)
	return err
}

// Logout revokes the refresh token and closes the session.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	refreshToken := s.refreshToken
	s.closed = true
	s.accessToken, s.refreshToken = "", ""
	s.mu.Unlock()

	if refreshToken == "" {
		return nil
	}
	return s.client.Logout(ctx, refreshToken)
}

// TokenType returns Bearer or DPoP.
func (s *Session) TokenType() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokenType
}

// AccessToken returns the current access token without checking expiration.
// For most use cases, prefer using the Session methods which handle refresh automatically.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// RefreshToken returns the current refresh token.
func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken
}
