package authsdk_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/aussiebroadwan/gatehouse/pkg/authsdk"
	"github.com/aussiebroadwan/gatehouse/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

// stubService records what the SDK sends and answers with fixed tokens.
type stubService struct {
	mu       sync.Mutex
	proofs   []string
	auth     []string
	refreshs atomic.Int32
	expires  int64
}

func (s *stubService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.proofs = append(s.proofs, r.Header.Get("DPoP"))
	s.auth = append(s.auth, r.Header.Get("Authorization"))
	s.mu.Unlock()

	tokenType := jwtx.TokenTypeBearer
	if r.Header.Get("DPoP") != "" {
		tokenType = jwtx.TokenTypeDPoP
	}

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/v1/token":
		var body authsdk.LoginRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Password != "pw" {
			authsdk.ErrInvalidCredentials.WriteError(w)
			return
		}
		writeTokens(w, tokenType, "access-1", "refresh-1", s.expires)
	case r.Method == http.MethodPut && r.URL.Path == "/v1/token":
		s.refreshs.Add(1)
		writeTokens(w, tokenType, "access-r", "refresh-r", 3600)
	case r.Method == http.MethodDelete && r.URL.Path == "/v1/token":
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	case r.URL.Path == "/v1/me":
		_ = json.NewEncoder(w).Encode(authsdk.IdentityResponse{Subject: "1", Scheme: tokenType})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func writeTokens(w http.ResponseWriter, tokenType, access, refresh string, expires int64) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(authsdk.TokenResponse{
		TokenType:    tokenType,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    expires,
	})
}

func newProofSigner(t *testing.T) *jwtx.ProofSigner {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	ps, err := jwtx.NewProofSigner(key)
	require.NoError(t, err)
	return ps
}

func TestBearerSession(t *testing.T) {
	stub := &stubService{expires: 3600}
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)

	client := authsdk.NewSDKClient(srv.URL + "/")

	t.Run("wrong password", func(t *testing.T) {
		_, err := client.AuthenticateWithPassword(t.Context(), "emilys", "nope")
		require.Equal(t, http.StatusUnauthorized, authsdk.StatusCode(err))
	})

	session, err := client.AuthenticateWithPassword(t.Context(), "emilys", "pw")
	require.NoError(t, err)
	require.Equal(t, jwtx.TokenTypeBearer, session.TokenType())

	id, err := session.Me(t.Context())
	require.NoError(t, err)
	require.Equal(t, "1", id.Subject)

	stub.mu.Lock()
	require.Equal(t, "Bearer access-1", stub.auth[len(stub.auth)-1])
	for _, p := range stub.proofs {
		require.Empty(t, p)
	}
	stub.mu.Unlock()

	require.NoError(t, session.Logout(t.Context()))
	_, err = session.Me(t.Context())
	require.ErrorIs(t, err, authsdk.ErrSessionClosed)
}

func TestDPoPSessionSignsEveryRequest(t *testing.T) {
	stub := &stubService{expires: 3600}
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)

	proofs := newProofSigner(t)
	client := authsdk.NewDPoPClient(srv.URL, proofs)

	session, err := client.AuthenticateWithPassword(t.Context(), "emilys", "pw")
	require.NoError(t, err)
	require.Equal(t, jwtx.TokenTypeDPoP, session.TokenType())

	_, err = session.Me(t.Context())
	require.NoError(t, err)

	stub.mu.Lock()
	defer stub.mu.Unlock()
	require.Len(t, stub.proofs, 2)
	require.NotEqual(t, stub.proofs[0], stub.proofs[1])
	require.Equal(t, "DPoP access-1", stub.auth[1])

	// The proof on /v1/me names the URL and binds the access token.
	v := jwtx.NewProofValidator(nil, jwtx.ProofConfig{BaseURL: srv.URL})
	res, err := v.ValidateProof(stub.proofs[1], http.MethodGet, "/v1/me")
	require.NoError(t, err)
	require.Equal(t, jwtx.AccessTokenHash("access-1"), res.Claims.ATH)
	require.Equal(t, proofs.Thumbprint(), res.Thumbprint)

	login, err := v.ValidateProof(stub.proofs[0], http.MethodPost, "/v1/token")
	require.NoError(t, err)
	require.Empty(t, login.Claims.ATH)
}

func TestSessionRefreshesOnce(t *testing.T) {
	// Tokens that are already inside the refresh leeway.
	stub := &stubService{expires: 1}
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)

	session, err := authsdk.NewSDKClient(srv.URL).AuthenticateWithPassword(t.Context(), "emilys", "pw")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := session.Me(t.Context())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	require.EqualValues(t, 1, stub.refreshs.Load())
	require.Equal(t, "refresh-r", session.RefreshToken())
}
