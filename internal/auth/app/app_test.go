package app_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/gatehouse/internal/auth/app"
	"github.com/aussiebroadwan/gatehouse/pkg/authsdk"
	"github.com/aussiebroadwan/gatehouse/pkg/cryptox"
	"github.com/aussiebroadwan/gatehouse/pkg/jwtx"
)

// staticEnv points the service at a users file hashed with a fresh pepper.
func staticEnv(t *testing.T) {
	t.Helper()
	dir := t.TempDir()

	pepperPath := filepath.Join(dir, "pepper")
	pepper, err := cryptox.LoadPepper(pepperPath)
	require.NoError(t, err)
	hash, err := cryptox.NewPasswordHasher(pepper).Hash("emilyspass")
	require.NoError(t, err)

	body, err := json.Marshal(map[string]any{"users": []map[string]any{{
		"id": 1, "username": "emilys", "passwordHash": hash, "firstName": "Emily", "lastName": "Johnson",
	}}})
	require.NoError(t, err)
	usersPath := filepath.Join(dir, "users.json")
	require.NoError(t, os.WriteFile(usersPath, body, 0o600))

	t.Setenv("DIRECTORY_DRIVER", "static")
	t.Setenv("DIRECTORY_FILE", usersPath)
	t.Setenv("AUTH_PEPPER_FILE", pepperPath)
	t.Setenv("CACHE_SQLITE_FILE", filepath.Join(dir, "cache.db"))
	t.Setenv("LOG_LEVEL", "error")
}

func TestNew_Drivers(t *testing.T) {
	for _, driver := range []string{"memory", "sqlite", "tiered"} {
		t.Run(driver, func(t *testing.T) {
			staticEnv(t)
			t.Setenv("CACHE_DRIVER", driver)

			cfg, err := app.LoadConfig()
			require.NoError(t, err)
			application, err := app.New(cfg)
			require.NoError(t, err)
			t.Cleanup(func() { _ = application.Shutdown() })

			srv := httptest.NewServer(application.Handler())
			t.Cleanup(srv.Close)
			client := authsdk.NewSDKClient(srv.URL)

			health, err := client.GetReadiness(t.Context())
			require.NoError(t, err)
			require.Equal(t, "ok", health.Status)

			session, err := client.AuthenticateWithPassword(t.Context(), "emilys", "emilyspass")
			require.NoError(t, err)
			require.Equal(t, jwtx.TokenTypeBearer, session.TokenType())

			me, err := session.Me(t.Context())
			require.NoError(t, err)
			require.Equal(t, "1", me.Subject)
			require.Equal(t, "Emily", me.Profile.FirstName)

			_, err = client.Login(t.Context(), "emilys", "wrong")
			require.Equal(t, http.StatusUnauthorized, authsdk.StatusCode(err))
		})
	}
}

func TestNew_KeyFromHex(t *testing.T) {
	staticEnv(t)
	t.Setenv("AUTH_PRIVATE_KEY_HEX", "c9afa9d845ba75166b5c215767b1d6934e50c3db36e89b127b8a622b120f6721")
	t.Setenv("AUTH_KEY_ID", "hex-key")

	cfg, err := app.LoadConfig()
	require.NoError(t, err)
	application, err := app.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Shutdown() })

	srv := httptest.NewServer(application.Handler())
	t.Cleanup(srv.Close)

	jwks, err := authsdk.NewSDKClient(srv.URL).GetJWKS(t.Context())
	require.NoError(t, err)
	require.Len(t, jwks.Keys, 1)
	require.Equal(t, "hex-key", jwks.Keys[0].Kid)
}

func TestNew_BadKeyFile(t *testing.T) {
	staticEnv(t)
	t.Setenv("AUTH_PRIVATE_KEY_FILE", filepath.Join(t.TempDir(), "absent.pem"))

	cfg, err := app.LoadConfig()
	require.NoError(t, err)
	_, err = app.New(cfg)
	require.Error(t, err)
}
