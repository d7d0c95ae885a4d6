package jwtx

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenConfig describes what the service issues and accepts.
type TokenConfig struct {
	Issuer           string
	Audience         string
	AccessTTL        time.Duration
	RefreshTTL       time.Duration
	RefreshNotBefore time.Duration

	// Now overrides the clock, mostly for tests. Defaults to time.Now.
	Now func() time.Time
}

// TokenPair is one issuance: an access and a refresh token sharing a jti.
type TokenPair struct {
	TokenType    string `json:"token_type"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`

	// JTI is not serialized, the client reads it from the tokens.
	JTI string `json:"-"`
}

// TokenResult is a successfully validated access or refresh token.
type TokenResult struct {
	Token  string
	Claims *TokenClaims
}

// AccessTokenValidator is anything that can validate access tokens issued
// by the service. *TokenService and *Verifier implement it.
type AccessTokenValidator interface {
	ValidateAccess(token string) (*TokenResult, error)
}

// TokenService creates and validates access/refresh token pairs.
type TokenService struct {
	*Verifier

	signer Signer
	keys   *KeySet
	cfg    TokenConfig
}

// NewTokenService wires a TokenService to the deployment key.
func NewTokenService(km *KeyManager, cfg TokenConfig) (*TokenService, error) {
	if cfg.Issuer == "" || cfg.Audience == "" {
		return nil, errors.New("jwtx: issuer and audience are required")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTokenTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTokenTTL
	}
	if cfg.RefreshNotBefore < 0 {
		cfg.RefreshNotBefore = 0
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	s := &TokenService{
		signer: km.Signer(),
		keys:   km.KeySet(),
		cfg:    cfg,
	}
	s.Verifier = NewVerifier(VerifierConfig{
		Keyfunc:    s.keys.Keyfunc,
		Algorithms: []string{km.Signer().Alg()},
		Issuer:     cfg.Issuer,
		Audience:   cfg.Audience,
		Now:        cfg.Now,
	})
	return s, nil
}

func (s *TokenService) Issuer() string   { return s.cfg.Issuer }
func (s *TokenService) Audience() string { return s.cfg.Audience }

// RefreshTTL is how long an issued refresh token stays usable.
func (s *TokenService) RefreshTTL() time.Duration { return s.cfg.RefreshTTL }

// Create signs a new pair for subject. When boundKey is set both tokens
// carry its thumbprint in cnf and the pair is of type DPoP.
func (s *TokenService) Create(subject string, custom json.RawMessage, boundKey *JWK) (*TokenPair, error) {
	now := s.cfg.Now().UTC()
	jti, err := NewJTI(s.cfg.Issuer, s.cfg.Audience, now)
	if err != nil {
		return nil, fmt.Errorf("jwtx: token id: %w", err)
	}

	tokenType := TokenTypeBearer
	var cnf *Confirmation
	if boundKey != nil {
		jkt, err := boundKey.Thumbprint()
		if err != nil {
			return nil, fmt.Errorf("jwtx: thumbprint bound key: %w", err)
		}
		cnf = &Confirmation{JKT: jkt}
		tokenType = TokenTypeDPoP
	}

	base := jwt.RegisteredClaims{
		ID:       jti,
		Issuer:   s.cfg.Issuer,
		Subject:  subject,
		Audience: jwt.ClaimStrings{s.cfg.Audience},
		IssuedAt: jwt.NewNumericDate(now),
	}

	access := TokenClaims{RegisteredClaims: base, Custom: custom, Cnf: cnf}
	access.ExpiresAt = jwt.NewNumericDate(now.Add(s.cfg.AccessTTL))

	refresh := TokenClaims{RegisteredClaims: base, Custom: custom, Cnf: cnf}
	refresh.ExpiresAt = jwt.NewNumericDate(now.Add(s.cfg.RefreshTTL))
	refresh.NotBefore = jwt.NewNumericDate(now.Add(s.cfg.RefreshNotBefore))

	accessToken, err := s.signer.Sign(AccessTokenType, access)
	if err != nil {
		return nil, fmt.Errorf("jwtx: sign access token: %w", err)
	}
	refreshToken, err := s.signer.Sign(RefreshTokenType, refresh)
	if err != nil {
		return nil, fmt.Errorf("jwtx: sign refresh token: %w", err)
	}

	return &TokenPair{
		TokenType:    tokenType,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.cfg.AccessTTL / time.Second),
		JTI:          jti,
	}, nil
}

