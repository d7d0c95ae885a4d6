package jwtx_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/gatehouse/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

const (
	exampleIssuer   = "gatehouse"
	exampleAudience = "gatehouse-api"
	exampleBaseURL  = "https://api.example.com"
)

// fakeClock is a settable clock shared by every service in a test.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0).UTC()}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newKeyManager(t *testing.T, alg string) *jwtx.KeyManager {
	t.Helper()
	km, err := jwtx.NewKeyManager(jwtx.KeyManagerOptions{Algorithm: alg, KeyID: "test-key"})
	require.NoError(t, err)
	return km
}

func newTokenService(t *testing.T, km *jwtx.KeyManager, clock *fakeClock, mutate ...func(*jwtx.TokenConfig)) *jwtx.TokenService {
	t.Helper()
	cfg := jwtx.TokenConfig{
		Issuer:           exampleIssuer,
		Audience:         exampleAudience,
		AccessTTL:        time.Minute,
		RefreshTTL:       10 * time.Minute,
		RefreshNotBefore: 30 * time.Second,
		Now:              clock.Now,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	svc, err := jwtx.NewTokenService(km, cfg)
	require.NoError(t, err)
	return svc
}

func newProofValidator(tokens *jwtx.TokenService, clock *fakeClock) *jwtx.ProofValidator {
	return jwtx.NewProofValidator(tokens, jwtx.ProofConfig{
		BaseURL:   exampleBaseURL + "/",
		ClockSkew: 5 * time.Minute,
		Now:       clock.Now,
	})
}

func newProofSigner(t *testing.T, clock *fakeClock) *jwtx.ProofSigner {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	ps, err := jwtx.NewProofSigner(key)
	require.NoError(t, err)
	ps.Now = clock.Now
	return ps
}

// replacePayload swaps the payload segment of a compact JWS, keeping the
// original signature.
func replacePayload(t *testing.T, token, from, to string) string {
	t.Helper()
	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	require.Contains(t, string(payload), from)
	parts[1] = base64.RawURLEncoding.EncodeToString([]byte(strings.Replace(string(payload), from, to, 1)))
	return strings.Join(parts, ".")
}
