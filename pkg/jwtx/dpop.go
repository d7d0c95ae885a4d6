package jwtx

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4"
)

// maxProofSize bounds the proof header before any parsing happens.
const maxProofSize = 8 * 1024

// ProofConfig configures DPoP proof validation.
type ProofConfig struct {
	// BaseURL is the public origin the service is reached at; htu must
	// equal BaseURL plus the request path.
	BaseURL string

	// ClockSkew is the allowed distance between proof iat and now.
	ClockSkew time.Duration

	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

// ProofValidator checks DPoP proofs, alone or together with the access
// token they are presented with.
type ProofValidator struct {
	tokens  AccessTokenValidator
	baseURL string
	skew    time.Duration
	now     func() time.Time
}

// NewProofValidator builds a validator over the token service that issued
// the access tokens it will see.
func NewProofValidator(tokens AccessTokenValidator, cfg ProofConfig) *ProofValidator {
	if cfg.ClockSkew <= 0 {
		cfg.ClockSkew = DefaultClockSkew
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &ProofValidator{
		tokens:  tokens,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		skew:    cfg.ClockSkew,
		now:     cfg.Now,
	}
}

// ValidateProof verifies a proof against its own embedded key and checks
// it was made for this method and URL just now. target is the request
// path, query and fragment are ignored.
func (v *ProofValidator) ValidateProof(proof, method, target string) (*DPoPResult, error) {
	if proof == "" || proof == "null" {
		return nil, Reject(KindMissingToken, "DPoP proof is missing")
	}
	if len(proof) > maxProofSize {
		return nil, Reject(KindInvalidToken, "DPoP proof is too large")
	}
	if strings.Count(proof, ".") != 2 {
		return nil, Reject(KindInvalidToken, "DPoP proof is not a compact JWS")
	}

	jws, err := jose.ParseSigned(proof, []jose.SignatureAlgorithm{jose.ES256})
	if err != nil {
		return nil, rejectWrap(KindInvalidToken, "DPoP proof is malformed", err)
	}
	if len(jws.Signatures) != 1 {
		return nil, Reject(KindInvalidToken, "DPoP proof must carry one signature")
	}

	header := jws.Signatures[0].Protected
	if typ, _ := header.ExtraHeaders[jose.HeaderType].(string); typ != ProofType {
		return nil, Reject(KindInvalidToken, `DPoP proof typ must be "dpop+jwt"`)
	}

	pub, err := embeddedKey(header.JSONWebKey)
	if err != nil {
		return nil, err
	}

	payload, err := jws.Verify(pub)
	if err != nil {
		return nil, rejectWrap(KindInvalidToken, "DPoP proof signature is invalid", err)
	}

	var claims ProofClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, rejectWrap(KindInvalidToken, "DPoP proof payload is malformed", err)
	}
	if claims.JTI == "" || claims.HTM == "" || claims.HTU == "" || claims.IssuedAt == 0 {
		return nil, Reject(KindInvalidToken, "DPoP proof is missing jti, htm, htu or iat")
	}

	if !strings.EqualFold(claims.HTM, method) {
		return nil, Reject(KindInvalidHtm, "DPoP proof htm does not match the request method")
	}

	if !strings.EqualFold(stripQuery(claims.HTU), v.baseURL+stripQuery(target)) {
		return nil, Reject(KindInvalidHtu, "DPoP proof htu does not match the request URL")
	}

	drift := v.now().Sub(time.Unix(claims.IssuedAt, 0))
	if drift < 0 {
		drift = -drift
	}
	if drift > v.skew {
		return nil, Reject(KindUnsyncToken, "DPoP proof iat is outside the allowed clock skew")
	}

	jwk := BindingKey(pub)
	jkt, err := jwk.Thumbprint()
	if err != nil {
		return nil, rejectWrap(KindUnexpectedError, "DPoP proof key could not be hashed", err)
	}

	return &DPoPResult{Claims: &claims, Key: jwk, Thumbprint: jkt}, nil
}

// ValidateBoundAccess validates an access token presented under the DPoP
// scheme: the token itself, the proof, the proof's hash of the token and
// the token's confirmation of the proof key.
func (v *ProofValidator) ValidateBoundAccess(accessToken, proof, method, target string) (*AccessResult, error) {
	if accessToken == "" || accessToken == "null" {
		return nil, Reject(KindMissingToken, "access token is missing")
	}
	if proof == "" || proof == "null" {
		return nil, Reject(KindMissingToken, "DPoP proof is missing")
	}

	access, err := v.tokens.ValidateAccess(accessToken)
	if err != nil {
		return nil, err
	}

	dp, err := v.ValidateProof(proof, method, target)
	if err != nil {
		return nil, err
	}

	if dp.Claims.ATH == "" || dp.Claims.ATH != AccessTokenHash(accessToken) {
		return nil, Reject(KindInvalidAth, "DPoP proof ath does not match the access token")
	}

	if err := access.Claims.ValidateConfirmation(dp.Thumbprint); err != nil {
		return nil, err
	}

	return &AccessResult{Access: access, Proof: dp}, nil
}

func embeddedKey(k *jose.JSONWebKey) (*ecdsa.PublicKey, error) {
	if k == nil {
		return nil, Reject(KindInvalidToken, "DPoP proof has no embedded jwk")
	}
	if !k.IsPublic() {
		return nil, Reject(KindInvalidToken, "DPoP proof jwk must be a public key")
	}
	pub, ok := k.Key.(*ecdsa.PublicKey)
	if !ok || pub.Curve != elliptic.P256() {
		return nil, Reject(KindInvalidToken, "DPoP proof jwk must be an EC P-256 key")
	}
	return pub, nil
}

func stripQuery(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		return u[:i]
	}
	return u
}
