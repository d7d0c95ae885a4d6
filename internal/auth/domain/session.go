package domain

import (
	"encoding/json"
	"time"

	"github.com/aussiebroadwan/gatehouse/pkg/jwtx"
)

// SessionRecord is what the token store keeps per issued pair, keyed by
// the pair's jti. It lives until the refresh token expires or is rotated.
type SessionRecord struct {
	JTI          string          `json:"jti"`
	TokenType    string          `json:"token_type"`
	RefreshToken string          `json:"refresh_token"`
	Subject      string          `json:"sub"`
	Custom       json.RawMessage `json:"custom,omitempty"`

	// BoundKey is the proof key of a DPoP session, nil for Bearer.
	BoundKey *jwtx.JWK `json:"jwk,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Bound reports whether refreshes must present the bound key.
func (r *SessionRecord) Bound() bool {
	return r.TokenType == jwtx.TokenTypeDPoP
}
