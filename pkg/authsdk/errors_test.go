package authsdk_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aussiebroadwan/gatehouse/pkg/authsdk"
	"github.com/aussiebroadwan/gatehouse/pkg/httpx"
	"github.com/aussiebroadwan/gatehouse/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func TestFromRejection(t *testing.T) {
	err := authsdk.FromRejection(jwtx.Reject(jwtx.KindJwkMismatch, "proof key does not match"))
	require.Equal(t, http.StatusForbidden, err.StatusCode)
	require.Equal(t, "jwk_mismatch", err.Code)
	require.ErrorIs(t, err, jwtx.KindJwkMismatch)
	require.NotErrorIs(t, err, jwtx.KindTokenNotFound)

	unknown := authsdk.FromRejection(errors.New("boom"))
	require.Equal(t, http.StatusUnauthorized, unknown.StatusCode)
	require.Equal(t, string(jwtx.KindUnexpectedError), unknown.Code)
	require.NotContains(t, unknown.Description, "boom")
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	authsdk.ErrInvalidCredentials.WriteError(rec)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	require.JSONEq(t, `{"error":"invalid_grant","error_description":"invalid credentials"}`, rec.Body.String())
}

func TestClientParsesErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/token":
			authsdk.FromRejection(jwtx.Reject(jwtx.KindTokenNotFound, "session not found")).WriteError(w)
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	t.Cleanup(srv.Close)

	client := authsdk.NewSDKClient(srv.URL)

	_, err := client.Refresh(t.Context(), "whatever")
	require.ErrorIs(t, err, jwtx.KindTokenNotFound)
	require.Equal(t, http.StatusUnauthorized, authsdk.StatusCode(err))

	_, err = client.GetLiveness(t.Context())
	var apiErr *authsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	require.Equal(t, authsdk.ErrorCodeServerError, apiErr.Code)
}

func TestRejectionBodyMatchesMiddleware(t *testing.T) {
	// The SDK must decode what httpx writes for a rejected request.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteAuthError(w, jwtx.TokenTypeBearer, jwtx.Reject(jwtx.KindExpiredToken, "token has expired"))
	}))
	t.Cleanup(srv.Close)

	session := authsdk.NewSDKClient(srv.URL).NewSessionFromTokens(&authsdk.TokenResponse{
		TokenType:   jwtx.TokenTypeBearer,
		AccessToken: "a",
		ExpiresIn:   3600,
	})
	_, err := session.Me(t.Context())
	require.ErrorIs(t, err, jwtx.KindExpiredToken)
}
