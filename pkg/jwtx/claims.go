package jwtx

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/gatehouse/pkg/cryptox"
	"github.com/golang-jwt/jwt/v5"
)

// Default lifetimes. Deployments override all of these through config.
const (
	DefaultAccessTokenTTL   = time.Minute
	DefaultRefreshTokenTTL  = 10 * time.Minute
	DefaultRefreshNotBefore = 30 * time.Second
	DefaultClockSkew        = 5 * time.Minute
)

// Token types reported alongside an issued pair.
const (
	TokenTypeBearer = "Bearer"
	TokenTypeDPoP   = "DPoP"
)

// JWS typ headers telling access and refresh tokens apart.
const (
	AccessTokenType  = "at+jwt"
	RefreshTokenType = "rt+jwt"
)

// Confirmation is the "cnf" claim of a sender-constrained token.
type Confirmation struct {
	// JKT is the RFC 7638 thumbprint of the bound key.
	JKT string `json:"jkt"`
}

// TokenClaims is the payload shared by access and refresh tokens. Refresh
// tokens additionally carry nbf.
type TokenClaims struct {
	jwt.RegisteredClaims

	// Custom holds opaque application claims, carried through refresh.
	Custom json.RawMessage `json:"custom,omitempty"`

	Cnf *Confirmation `json:"cnf,omitempty"`
}

// Bound reports whether the claims carry a key confirmation.
func (c *TokenClaims) Bound() bool {
	return c.Cnf != nil && c.Cnf.JKT != ""
}

// NewJTI derives a token identifier from the issuer, audience, a random
// nonce and the issue time. Both tokens of a pair share it.
func NewJTI(issuer, audience string, now time.Time) (string, error) {
	nonce, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return "", err
	}

	h := sha256.New()
	h.Write([]byte(issuer))
	h.Write([]byte{'|'})
	h.Write([]byte(audience))
	h.Write([]byte{'|'})
	h.Write([]byte(nonce))
	h.Write([]byte{'|'})
	h.Write([]byte(strconv.FormatInt(now.UnixNano(), 10)))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil)), nil
}

// ValidateIssuer checks iss against the configured issuer.
func (c *TokenClaims) ValidateIssuer(expected string) error {
	if c.Issuer != expected {
		return Reject(KindInvalidIssuer, "issuer does not match")
	}
	return nil
}

// ValidateAudience checks that the configured audience is present.
func (c *TokenClaims) ValidateAudience(expected string) error {
	if !slices.Contains(c.Audience, expected) {
		return Reject(KindInvalidAudience, "audience does not match")
	}
	return nil
}

// ValidateExpiry rejects once now is strictly after exp, in whole seconds.
func (c *TokenClaims) ValidateExpiry(now time.Time) error {
	if c.ExpiresAt == nil {
		return Reject(KindInvalidToken, "exp claim is required")
	}
	if now.Unix() > c.ExpiresAt.Unix() {
		return Reject(KindExpiredToken, "token has expired")
	}
	return nil
}

// ValidateNotBefore requires nbf and rejects while now is before it.
func (c *TokenClaims) ValidateNotBefore(now time.Time) error {
	if c.NotBefore == nil {
		return Reject(KindInvalidNBF, "nbf claim is required")
	}
	if now.Unix() < c.NotBefore.Unix() {
		return Reject(KindUntimelyToken, "token is not valid yet")
	}
	return nil
}

// ValidateConfirmation compares the cnf thumbprint with jkt, ignoring case.
func (c *TokenClaims) ValidateConfirmation(jkt string) error {
	if !c.Bound() || !strings.EqualFold(c.Cnf.JKT, jkt) {
		return Reject(KindInvalidBinding, "token is not bound to the proof key")
	}
	return nil
}
