package auth_test

import (
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/gatehouse/pkg/jwtx"
)

// TestBearerLoginRefreshLogout walks a Bearer session through its whole life:
// login, identity, rotation, reuse of the rotated token and logout.
func TestBearerLoginRefreshLogout(t *testing.T) {
	svc := setupAuthContainer(t, relaxedRateLimits)
	client := svc.client()
	ctx := t.Context()

	first, err := client.Login(ctx, testUsername, testPassword)
	require.NoError(t, err)
	assertTokenResponse(t, first, jwtx.TokenTypeBearer)

	session := client.NewSessionFromTokens(first)
	me, err := session.Me(ctx)
	require.NoError(t, err)
	require.Equal(t, "1", me.Subject)
	require.Equal(t, jwtx.TokenTypeBearer, me.Scheme)
	require.NotNil(t, me.Profile)
	require.Equal(t, testUsername, me.Profile.Username)

	// Rotation
	second, err := client.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	assertTokenResponse(t, second, jwtx.TokenTypeBearer)
	require.NotEqual(t, first.AccessToken, second.AccessToken, "Access token should be rotated")
	require.NotEqual(t, first.RefreshToken, second.RefreshToken, "Refresh token should be rotated")

	_, err = client.Refresh(ctx, first.RefreshToken)
	require.ErrorIs(t, err, jwtx.KindTokenNotFound, "A rotated refresh token must not work again")

	// Logout
	require.NoError(t, client.Logout(ctx, second.RefreshToken))
	_, err = client.Refresh(ctx, second.RefreshToken)
	require.ErrorIs(t, err, jwtx.KindTokenNotFound)
}

// TestLoginRejectsWrongPassword verifies bad credentials get invalid_grant.
func TestLoginRejectsWrongPassword(t *testing.T) {
	svc := setupAuthContainer(t, relaxedRateLimits)

	_, err := svc.client().Login(t.Context(), testUsername, "wrong")
	assertStatus(t, err, http.StatusUnauthorized, "wrong password")

	_, err = svc.client().Login(t.Context(), "nobody", testPassword)
	assertStatus(t, err, http.StatusUnauthorized, "unknown user")
}

// TestConcurrentRefresh verifies only one of several concurrent refreshes
// of the same token succeeds.
func TestConcurrentRefresh(t *testing.T) {
	svc := setupAuthContainer(t, relaxedRateLimits)
	client := svc.client()

	pair, err := client.Login(t.Context(), testUsername, testPassword)
	require.NoError(t, err)

	const n = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := client.Refresh(t.Context(), pair.RefreshToken); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, wins)
}

// TestDPoPSession verifies a DPoP bound session: the pair carries the
// proof key thumbprint, refresh needs the same key and proofs are single use.
func TestDPoPSession(t *testing.T) {
	svc := setupAuthContainer(t, relaxedRateLimits)
	client, proofs := svc.dpopClient(t)
	ctx := t.Context()

	session, err := client.AuthenticateWithPassword(ctx, testUsername, testPassword)
	require.NoError(t, err)
	require.Equal(t, jwtx.TokenTypeDPoP, session.TokenType())

	me, err := session.Me(ctx)
	require.NoError(t, err)
	require.Equal(t, jwtx.TokenTypeDPoP, me.Scheme)
	require.Equal(t, proofs.Thumbprint(), me.JKT)

	t.Run("refresh with another key", func(t *testing.T) {
		other, _ := svc.dpopClient(t)
		_, err := other.Refresh(ctx, session.RefreshToken())
		require.ErrorIs(t, err, jwtx.KindJwkMismatch)
		assertStatus(t, err, http.StatusForbidden, "foreign key refresh")
	})

	t.Run("refresh without a proof", func(t *testing.T) {
		_, err := svc.client().Refresh(ctx, session.RefreshToken())
		require.ErrorIs(t, err, jwtx.KindJwkMismatch)
	})

	t.Run("refresh with the bound key", func(t *testing.T) {
		require.NoError(t, session.ForceRefresh(ctx))
		me, err := session.Me(ctx)
		require.NoError(t, err)
		require.Equal(t, proofs.Thumbprint(), me.JKT)
	})

	t.Run("replayed proof", func(t *testing.T) {
		proof, err := proofs.Proof(http.MethodGet, serviceOrigin+"/v1/me", session.AccessToken())
		require.NoError(t, err)

		send := func() int {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, serviceOrigin+"/v1/me", nil)
			require.NoError(t, err)
			req.Header.Set("Authorization", "DPoP "+session.AccessToken())
			req.Header.Set("DPoP", proof)
			resp, err := svc.httpClient.Do(req)
			require.NoError(t, err)
			_ = resp.Body.Close()
			return resp.StatusCode
		}
		require.Equal(t, http.StatusOK, send())
		require.Equal(t, http.StatusForbidden, send())
	})
}
