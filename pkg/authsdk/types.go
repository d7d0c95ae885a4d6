package authsdk

import (
	"encoding/json"

	"github.com/aussiebroadwan/gatehouse/pkg/jwtx"
)

// ============================================================================
// Internal Response Types (used for JSON unmarshaling)
// ============================================================================

// ErrorResponse is the body of every error response.
// Client code should use the APIError type from errors.go instead.
type ErrorResponse struct {
	// Error is an RFC 6749 code or a rejection kind (e.g. "expired_token")
	Error string `json:"error" example:"invalid_grant"`

	// ErrorDescription is a human-readable description of the error
	ErrorDescription string `json:"error_description" example:"invalid credentials"`
}

// ============================================================================
// Token Types
// ============================================================================

// LoginRequest is the body of POST /v1/token.
type LoginRequest struct {
	Username string `json:"username" example:"emilys"`
	Password string `json:"password" example:"emilyspass"`
}

// RefreshRequest is the body of PUT and DELETE /v1/token.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenResponse is returned by login and refresh.
type TokenResponse struct {
	// TokenType is "DPoP" when the pair is bound to a proof key, else "Bearer"
	TokenType string `json:"token_type" example:"DPoP"`

	// AccessToken is the JWT presented on every API request
	AccessToken string `json:"access_token"`

	// RefreshToken is the JWT used once to obtain the next pair
	RefreshToken string `json:"refresh_token"`

	// ExpiresIn is the lifetime in seconds of the access token
	ExpiresIn int64 `json:"expires_in" example:"60"`
}

// NewTokenResponse converts an issued pair to its wire form.
func NewTokenResponse(pair *jwtx.TokenPair) TokenResponse {
	return TokenResponse{
		TokenType:    pair.TokenType,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
	}
}

// ============================================================================
// Identity Types
// ============================================================================

// IdentityResponse is returned from GET /v1/me.
type IdentityResponse struct {
	Subject string `json:"sub" example:"1"`
	Scheme  string `json:"scheme" example:"DPoP"`
	JTI     string `json:"jti"`

	// JKT is the thumbprint of the key the token is bound to, empty for Bearer
	JKT string `json:"jkt,omitempty"`

	// Custom holds the claims the directory contributed at login
	Custom json.RawMessage `json:"custom,omitempty" swaggertype:"object"`

	ExpiresAt int64 `json:"exp"`

	// Profile is the directory entry of the subject, omitted when the
	// directory could not be reached
	Profile *ProfileResponse `json:"profile,omitempty"`
}

// ProfileResponse is a directory user without credentials.
type ProfileResponse struct {
	ID        int64  `json:"id" example:"1"`
	Username  string `json:"username" example:"emilys"`
	FirstName string `json:"firstName" example:"Emily"`
	LastName  string `json:"lastName" example:"Johnson"`
	Email     string `json:"email,omitempty"`
}

// ============================================================================
// Health Types
// ============================================================================

// HealthResponse represents the response structure for health check endpoints.
// Used by both /livez and /readyz endpoints (readyz includes additional Checks field).
type HealthResponse struct {
	// Status indicates the overall health status (e.g., "ok")
	Status string `json:"status"`

	// Uptime is the service uptime duration as a string (e.g., "1h23m45s")
	Uptime string `json:"uptime,omitempty"`

	// Version is the service version string
	Version string `json:"version,omitempty"`

	// Checks contains readiness check results for critical dependencies (only for /readyz)
	Checks *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks represents the status of critical service dependencies.
type HealthChecks struct {
	// Cache indicates whether the token store answers
	Cache string `json:"cache"`

	// Signer indicates the JWT signing capability status
	Signer string `json:"signer"`
}

// ============================================================================
// JWKS Types
// ============================================================================

// JWKSResponse contains the JSON Web Key Set.
// This is returned from the GET /.well-known/jwks.json endpoint and contains
// public keys used to verify JWT signatures.
type JWKSResponse jwtx.JWKS
