package jwtx

import (
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aussiebroadwan/gatehouse/pkg/cryptox"
	"github.com/go-jose/go-jose/v4"
	"github.com/google/uuid"
)

// ProofType is the typ header every DPoP proof must carry.
const ProofType = "dpop+jwt"

// DefaultReplayWindow is how long a proof jti stays consumed.
const DefaultReplayWindow = 10 * time.Minute

// ProofClaims is the payload of a DPoP proof (RFC 9449 section 4.2).
type ProofClaims struct {
	JTI      string `json:"jti"`
	HTM      string `json:"htm"`
	HTU      string `json:"htu"`
	IssuedAt int64  `json:"iat"`

	// ATH is present only when the proof accompanies an access token.
	ATH string `json:"ath,omitempty"`
}

// DPoPResult is a proof that passed ValidateProof.
type DPoPResult struct {
	Claims     *ProofClaims
	Key        *JWK
	Thumbprint string
}

// AccessResult is an access token and the proof that was presented with it.
type AccessResult struct {
	Access *TokenResult
	Proof  *DPoPResult
}

// AccessTokenHash computes the ath value for an access token.
func AccessTokenHash(accessToken string) string {
	return cryptox.FingerprintToken(accessToken)
}

// ProofSigner produces DPoP proofs with a client held P-256 key. Servers
// never hold one; it exists for clients and tests.
type ProofSigner struct {
	key    *ecdsa.PrivateKey
	jwk    *JWK
	jkt    string
	signer jose.Signer

	// Now overrides the clock used for iat.
	Now func() time.Time
}

// NewProofSigner prepares a signer embedding the public half of key in
// every proof header.
func NewProofSigner(key *ecdsa.PrivateKey) (*ProofSigner, error) {
	opts := (&jose.SignerOptions{}).
		WithType(ProofType).
		WithHeader("jwk", jose.JSONWebKey{Key: &key.PublicKey, Algorithm: string(jose.ES256)})

	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.ES256, Key: key}, opts)
	if err != nil {
		return nil, fmt.Errorf("jwtx: create proof signer: %w", err)
	}

	jwk := BindingKey(&key.PublicKey)
	jkt, err := jwk.Thumbprint()
	if err != nil {
		return nil, err
	}

	return &ProofSigner{key: key, jwk: jwk, jkt: jkt, signer: signer, Now: time.Now}, nil
}

// PublicJWK is the key a server binds tokens to.
func (p *ProofSigner) PublicJWK() *JWK { return p.jwk }

// Thumbprint is the jkt of PublicJWK.
func (p *ProofSigner) Thumbprint() string { return p.jkt }

// Proof signs a fresh proof for method and htu. When accessToken is not
// empty the proof is bound to it through ath.
func (p *ProofSigner) Proof(method, htu, accessToken string) (string, error) {
	claims := ProofClaims{
		JTI:      uuid.New().String(),
		HTM:      method,
		HTU:      htu,
		IssuedAt: p.Now().Unix(),
	}
	if accessToken != "" {
		claims.ATH = AccessTokenHash(accessToken)
	}
	return p.Sign(claims)
}

// Sign serializes arbitrary proof claims.
func (p *ProofSigner) Sign(claims ProofClaims) (string, error) {
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	jws, err := p.signer.Sign(payload)
	if err != nil {
		return "", fmt.Errorf("jwtx: sign proof: %w", err)
	}
	return jws.CompactSerialize()
}
