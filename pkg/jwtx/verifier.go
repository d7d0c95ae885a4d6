package jwtx

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// VerifierConfig describes where verification keys come from and which
// tokens are acceptable.
type VerifierConfig struct {
	Keyfunc    jwt.Keyfunc
	Algorithms []string
	Issuer     string
	Audience   string

	// Now defaults to time.Now.
	Now func() time.Time
}

// Verifier validates access and refresh tokens without being able to issue
// them. The key source is pluggable: the service uses its own KeySet,
// resource servers use a remote JWKS.
type Verifier struct {
	parser   *jwt.Parser
	keyfunc  jwt.Keyfunc
	issuer   string
	audience string
	now      func() time.Time
}

func NewVerifier(cfg VerifierConfig) *Verifier {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Verifier{
		// Claims are checked by hand so failures come out in a fixed order.
		parser: jwt.NewParser(
			jwt.WithValidMethods(cfg.Algorithms),
			jwt.WithoutClaimsValidation(),
		),
		keyfunc:  cfg.Keyfunc,
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		now:      cfg.Now,
	}
}

// ValidateAccess checks an access token: signature, issuer, audience and
// expiry, in that order, then that it was issued as an access token.
func (v *Verifier) ValidateAccess(token string) (*TokenResult, error) {
	return v.validate(token, AccessTokenType, false)
}

// ValidateRefresh checks a refresh token like ValidateAccess does. With
// requireNotBefore nbf is enforced as well, before the token type, so an
// access token presented for refresh fails with KindInvalidNBF.
func (v *Verifier) ValidateRefresh(token string, requireNotBefore bool) (*TokenResult, error) {
	return v.validate(token, RefreshTokenType, requireNotBefore)
}

func (v *Verifier) validate(token, typ string, requireNotBefore bool) (*TokenResult, error) {
	if token == "" || token == "null" {
		return nil, Reject(KindMissingToken, "token is missing")
	}

	claims := &TokenClaims{}
	parsed, err := v.parser.ParseWithClaims(token, claims, v.keyfunc)
	if err != nil {
		return nil, classifyParseError(err)
	}
	if !parsed.Valid {
		return nil, Reject(KindInvalidToken, "token could not be verified")
	}

	now := v.now().UTC()
	if err := claims.ValidateIssuer(v.issuer); err != nil {
		return nil, err
	}
	if err := claims.ValidateAudience(v.audience); err != nil {
		return nil, err
	}
	if err := claims.ValidateExpiry(now); err != nil {
		return nil, err
	}
	if requireNotBefore {
		if err := claims.ValidateNotBefore(now); err != nil {
			return nil, err
		}
	}
	if claims.ID == "" {
		return nil, Reject(KindInvalidToken, "jti claim is required")
	}
	if got, _ := parsed.Header["typ"].(string); got != typ {
		return nil, Reject(KindInvalidToken, "expected "+tokenUse(typ)+" token")
	}

	return &TokenResult{Token: token, Claims: claims}, nil
}

func tokenUse(typ string) string {
	if typ == RefreshTokenType {
		return "refresh"
	}
	return "access"
}

func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return rejectWrap(KindInvalidToken, "token is malformed", err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return rejectWrap(KindInvalidToken, "token signature is invalid", err)
	default:
		return rejectWrap(KindUnexpectedError, "token could not be processed", err)
	}
}
