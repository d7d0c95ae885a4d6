/*
Package authsdk provides a client SDK for the gatehouse token service and a
verifier for services that accept its tokens.

# SDKClient vs Session

The package is organized around two main types:

  - SDKClient: Provides unauthenticated operations and creates authenticated sessions
  - Session: Provides authenticated operations with automatic token refresh

Create an SDKClient to interact with public endpoints and log in:

	client := authsdk.NewSDKClient("https://auth.example.com")

	// Check service health
	health, err := client.GetLiveness(ctx)

	// Authenticate to create a session
	session, err := client.AuthenticateWithPassword(ctx, username, password)

# DPoP

A client created with NewDPoPClient holds a P-256 key. Every token request
carries a DPoP proof, the issued pair is bound to the key, and each
authenticated call signs a fresh proof that includes the access token hash:

	key, _ := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	proofs, _ := jwtx.NewProofSigner(key)
	client := authsdk.NewDPoPClient("https://auth.example.com", proofs)

The BaseURL must be the exact origin the service is configured with
(AUTH_BASE_URL); proofs name it in htu.

# Automatic Token Refresh

Sessions automatically refresh access tokens shortly before they expire.
Refresh rotates the pair: the previous refresh token stops working as soon
as the new one is issued. Multiple goroutines can share a single Session;
only one of them performs the refresh.

# Error Handling

Every non-2xx response becomes an *APIError. Token rejections carry a
jwtx.Kind as their code, so callers can match them directly:

	_, err := client.Refresh(ctx, refreshToken)
	if errors.Is(err, jwtx.KindTokenNotFound) {
		// the token was already rotated or logged out
	}

# Resource Servers

Services that accept gatehouse tokens use a RemoteVerifier, which validates
tokens against the published JWKS and plugs into httpx.Authenticate:

	v, err := authsdk.NewRemoteVerifier(ctx, authsdk.RemoteVerifierConfig{
		BaseURL:  "https://api.example.com",
		JWKSURL:  "https://auth.example.com/.well-known/jwks.json",
		Issuer:   "gatehouse",
		Audience: "gatehouse-api",
	})
	mux.Handle("GET /things", httpx.Chain(things, httpx.Authenticate(v.AuthConfig(replayGuard))))
*/
package authsdk
