package authsdk

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v3"

	"github.com/aussiebroadwan/gatehouse/pkg/httpx"
	"github.com/aussiebroadwan/gatehouse/pkg/jwtx"
)

// RemoteVerifierConfig describes the token service a resource server trusts.
type RemoteVerifierConfig struct {
	// JWKSURL defaults to BaseURL + "/.well-known/jwks.json".
	JWKSURL string
	BaseURL string

	Issuer   string
	Audience string

	// Algorithms defaults to ES256 and RS256.
	Algorithms []string

	// ClockSkew bounds DPoP proof iat drift. Defaults to jwtx.DefaultClockSkew.
	ClockSkew time.Duration
}

// RemoteVerifier validates gatehouse tokens in another service. Keys are
// fetched from the published JWKS and refreshed in the background until
// ctx passed to NewRemoteVerifier is cancelled.
type RemoteVerifier struct {
	*jwtx.Verifier

	proofs *jwtx.ProofValidator
}

func NewRemoteVerifier(ctx context.Context, cfg RemoteVerifierConfig) (*RemoteVerifier, error) {
	if cfg.Issuer == "" || cfg.Audience == "" {
		return nil, errors.New("authsdk: issuer and audience are required")
	}
	if cfg.JWKSURL == "" {
		if cfg.BaseURL == "" {
			return nil, errors.New("authsdk: jwks url or base url is required")
		}
		cfg.JWKSURL = strings.TrimSuffix(cfg.BaseURL, "/") + "/.well-known/jwks.json"
	}
	if len(cfg.Algorithms) == 0 {
		cfg.Algorithms = []string{jwtx.AlgorithmES256, jwtx.AlgorithmRS256}
	}

	kf, err := keyfunc.NewDefaultCtx(ctx, []string{cfg.JWKSURL})
	if err != nil {
		return nil, fmt.Errorf("authsdk: jwks init failed: %w", err)
	}

	v := jwtx.NewVerifier(jwtx.VerifierConfig{
		Keyfunc:    kf.Keyfunc,
		Algorithms: cfg.Algorithms,
		Issuer:     cfg.Issuer,
		Audience:   cfg.Audience,
	})
	return &RemoteVerifier{
		Verifier: v,
		proofs: jwtx.NewProofValidator(v, jwtx.ProofConfig{
			BaseURL:   cfg.BaseURL,
			ClockSkew: cfg.ClockSkew,
		}),
	}, nil
}

// Proofs returns the DPoP validator bound to this verifier.
func (v *RemoteVerifier) Proofs() *jwtx.ProofValidator { return v.proofs }

// AuthConfig builds the configuration for httpx.Authenticate. replay must
// be shared by every replica that serves the same BaseURL.
func (v *RemoteVerifier) AuthConfig(replay httpx.ReplayGuard) httpx.AuthConfig {
	return httpx.AuthConfig{
		Tokens: v.Verifier,
		Proofs: v.proofs,
		Replay: replay,
	}
}
