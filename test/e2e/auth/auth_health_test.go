package auth_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestLivezEndpoint verifies the liveness check endpoint.
func TestLivezEndpoint(t *testing.T) {
	svc := setupAuthContainer(t, nil)

	health, err := svc.client().GetLiveness(t.Context())
	assertHealthy(t, health, err)
}

// TestReadyzEndpoint verifies readiness reports the cache and signer.
func TestReadyzEndpoint(t *testing.T) {
	svc := setupAuthContainer(t, nil)

	health, err := svc.client().GetReadiness(t.Context())
	assertHealthy(t, health, err)
	require.NotNil(t, health.Checks)
	require.Equal(t, "ok", health.Checks.Cache)
	require.Equal(t, "ok", health.Checks.Signer)
}

// TestJWKSEndpoint verifies the signing key is published.
func TestJWKSEndpoint(t *testing.T) {
	svc := setupAuthContainer(t, nil)

	jwks, err := svc.client().GetJWKS(t.Context())
	require.NoError(t, err)
	require.Len(t, jwks.Keys, 1)

	key := jwks.Keys[0]
	require.Equal(t, "gatehouse-e2e-key", key.Kid)
	require.Equal(t, "ES256", key.Alg)
	require.Equal(t, "EC", key.Kty)

	keyJSON, _ := json.Marshal(key)
	t.Logf("Key JSON: %s", keyJSON)
}
