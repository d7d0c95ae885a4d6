package jwtx_test

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"

	"github.com/aussiebroadwan/gatehouse/pkg/cryptox"
	"github.com/aussiebroadwan/gatehouse/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func TestNewKeyManager_Ephemeral(t *testing.T) {
	tests := []struct {
		name      string
		algorithm string
		kty       string
	}{
		{"ES256", jwtx.AlgorithmES256, "EC"},
		{"RS256", jwtx.AlgorithmRS256, "RSA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			km := newKeyManager(t, tt.algorithm)

			require.True(t, km.IsReady())
			require.True(t, km.Ephemeral())
			require.Equal(t, tt.algorithm, km.Algorithm())
			require.Equal(t, tt.algorithm, km.Signer().Alg())
			require.Equal(t, "test-key", km.Signer().KID())
			require.NoError(t, km.Signer().Validate())

			jwks := km.KeySet().PublicJWKS()
			require.Len(t, jwks.Keys, 1)
			require.Equal(t, tt.kty, jwks.Keys[0].Kty)
			require.Equal(t, "test-key", jwks.Keys[0].Kid)
		})
	}
}

func TestNewKeyManager_FromPEM(t *testing.T) {
	ecKey, err := cryptox.GenerateP256()
	require.NoError(t, err)
	rsaKey, err := cryptox.GenerateRSA(2048)
	require.NoError(t, err)

	ecPKCS8, err := cryptox.MarshalPrivateKeyPEM(ecKey)
	require.NoError(t, err)
	ecSEC1, err := x509.MarshalECPrivateKey(ecKey)
	require.NoError(t, err)

	tests := []struct {
		name      string
		algorithm string
		pem       []byte
		wantErr   bool
	}{
		{"ES256 PKCS8", jwtx.AlgorithmES256, ecPKCS8, false},
		{"ES256 SEC 1", jwtx.AlgorithmES256, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: ecSEC1}), false},
		{"RS256 PKCS1", jwtx.AlgorithmRS256, pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(rsaKey)}), false},
		{"algorithm and key disagree", jwtx.AlgorithmES256, pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(rsaKey)}), true},
		{"unknown algorithm", "HS256", ecPKCS8, true},
		{"garbage", jwtx.AlgorithmES256, []byte("not a pem"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			km, err := jwtx.NewKeyManager(jwtx.KeyManagerOptions{
				Algorithm:     tt.algorithm,
				KeyID:         "k1",
				PrivateKeyPEM: tt.pem,
			})
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.False(t, km.Ephemeral())
			require.Equal(t, tt.algorithm, km.Signer().Alg())
		})
	}
}

func TestNewKeyManager_FromHex(t *testing.T) {
	key, err := cryptox.GenerateP256()
	require.NoError(t, err)

	hexKey, err := cryptox.EncodeES256KeyHex(key)
	require.NoError(t, err)

	km, err := jwtx.NewKeyManager(jwtx.KeyManagerOptions{
		Algorithm:     jwtx.AlgorithmES256,
		KeyID:         "k1",
		PrivateKeyHex: hexKey,
	})
	require.NoError(t, err)
	require.False(t, km.Ephemeral())
	require.Equal(t, jwtx.NewES256JWK("k1", "sig", "ES256", &key.PublicKey), km.Signer().PublicJWK())

	_, err = jwtx.NewKeyManager(jwtx.KeyManagerOptions{
		Algorithm:     jwtx.AlgorithmRS256,
		KeyID:         "k1",
		PrivateKeyHex: hexKey,
	})
	require.Error(t, err, "hex keys are EC only")
}

func TestNewSigner(t *testing.T) {
	p384, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	require.NoError(t, err)
	_, err = jwtx.NewSigner("k", p384)
	require.ErrorContains(t, err, "P-256")

	_, edKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	_, err = jwtx.NewSigner("k", edKey)
	require.ErrorContains(t, err, "unsupported signing key")

	small, err := rsa.GenerateKey(rand.Reader, 1024)
	require.NoError(t, err)
	_, err = jwtx.NewSigner("k", small)
	require.ErrorContains(t, err, "too small")
}

func TestNewKeyManager_ErrorCases(t *testing.T) {
	_, err := jwtx.NewKeyManager(jwtx.KeyManagerOptions{Algorithm: jwtx.AlgorithmES256})
	require.Error(t, err, "missing kid")

	_, err = jwtx.NewKeyManager(jwtx.KeyManagerOptions{Algorithm: "EdDSA", KeyID: "k"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported algorithm")
}
