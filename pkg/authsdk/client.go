package authsdk

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/gatehouse/pkg/jwtx"
)

// SDKClient is a client for the gatehouse token service.
// It provides access to unauthenticated operations and can create authenticated Sessions.
type SDKClient struct {
	// BaseURL must equal the service's AUTH_BASE_URL; DPoP proofs are made
	// for BaseURL plus the request path.
	BaseURL    string
	HTTPClient *http.Client

	// Proofs signs a DPoP proof for every request. When nil the client
	// obtains and presents Bearer tokens.
	Proofs *jwtx.ProofSigner
}

// NewSDKClient creates a new Bearer client.
func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// NewDPoPClient creates a client whose tokens are bound to the proof key.
func NewDPoPClient(baseURL string, proofs *jwtx.ProofSigner) *SDKClient {
	c := NewSDKClient(baseURL)
	c.Proofs = proofs
	return c
}

// AuthenticateWithPassword logs in and returns a session that refreshes
// itself.
func (c *SDKClient) AuthenticateWithPassword(ctx context.Context, username, password string) (*Session, error) {
	tokenResp, err := c.Login(ctx, username, password)
	if err != nil {
		return nil, err
	}
	return newSession(c, tokenResp), nil
}

// AuthenticateWithRefreshToken creates an authenticated session from an existing refresh token.
func (c *SDKClient) AuthenticateWithRefreshToken(ctx context.Context, refreshToken string) (*Session, error) {
	tokenResp, err := c.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	return newSession(c, tokenResp), nil
}

// NewSessionFromTokens creates an authenticated session from existing tokens.
// The session will still perform auto-refresh when the access token expires.
func (c *SDKClient) NewSessionFromTokens(tokenResp *TokenResponse) *Session {
	return newSession(c, tokenResp)
}
