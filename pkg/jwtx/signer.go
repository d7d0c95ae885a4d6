package jwtx

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/gatehouse/pkg/cryptox"
	"github.com/golang-jwt/jwt/v5"
)

// Signer signs tokens with the deployment's private key.
type Signer interface {
	Alg() string
	KID() string
	Sign(typ string, claims jwt.Claims) (string, error)
	PublicJWK() JWK
	Validate() error
}

// keySigner signs with one private key. The method follows the key type:
// P-256 keys sign ES256, RSA keys RS256.
type keySigner struct {
	kid    string
	method jwt.SigningMethod
	key    crypto.Signer
}

// NewSigner wraps an ECDSA P-256 or RSA private key.
func NewSigner(kid string, key crypto.Signer) (Signer, error) {
	s := &keySigner{kid: kid, key: key}
	switch key.(type) {
	case *ecdsa.PrivateKey:
		s.method = jwt.SigningMethodES256
	case *rsa.PrivateKey:
		s.method = jwt.SigningMethodRS256
	default:
		return nil, fmt.Errorf("jwtx: unsupported signing key %T", key)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewSignerPEM loads a PEM private key and checks it suits alg.
func NewSignerPEM(alg, kid string, pemKey []byte) (Signer, error) {
	if alg != AlgorithmES256 && alg != AlgorithmRS256 {
		return nil, fmt.Errorf("jwtx: unsupported algorithm %q (supported: RS256, ES256)", alg)
	}
	key, err := cryptox.ParsePrivateKeyPEM(pemKey)
	if err != nil {
		return nil, fmt.Errorf("jwtx: %w", err)
	}
	s, err := NewSigner(kid, key)
	if err != nil {
		return nil, err
	}
	if s.Alg() != alg {
		return nil, fmt.Errorf("jwtx: configured for %s but the key signs %s", alg, s.Alg())
	}
	return s, nil
}

// NewSignerES256Hex loads a hex encoded 32 byte P-256 private scalar.
func NewSignerES256Hex(kid, hexKey string) (Signer, error) {
	key, err := cryptox.ParseES256KeyHex(hexKey)
	if err != nil {
		return nil, fmt.Errorf("jwtx: %w", err)
	}
	return NewSigner(kid, key)
}

func (s *keySigner) Alg() string { return s.method.Alg() }
func (s *keySigner) KID() string { return s.kid }

// Sign returns claims as a compact JWS with the typ and kid headers set.
func (s *keySigner) Sign(typ string, claims jwt.Claims) (string, error) {
	t := jwt.NewWithClaims(s.method, claims)
	t.Header["typ"] = typ
	t.Header["kid"] = s.kid
	return t.SignedString(s.key)
}

func (s *keySigner) PublicJWK() JWK {
	switch k := s.key.(type) {
	case *ecdsa.PrivateKey:
		return NewES256JWK(s.kid, "sig", s.Alg(), &k.PublicKey)
	case *rsa.PrivateKey:
		return NewRSAJWK(s.kid, "sig", s.Alg(), &k.PublicKey)
	}
	return JWK{}
}

func (s *keySigner) Validate() error {
	switch k := s.key.(type) {
	case *ecdsa.PrivateKey:
		if k == nil {
			return errors.New("jwtx: nil ECDSA key")
		}
		if name := k.Curve.Params().Name; name != "P-256" {
			return fmt.Errorf("jwtx: ES256 needs a P-256 key, got %s", name)
		}
	case *rsa.PrivateKey:
		if k == nil {
			return errors.New("jwtx: nil RSA key")
		}
		if bits := k.N.BitLen(); bits < cryptox.MinRSABits {
			return fmt.Errorf("jwtx: RSA key too small (%d bits)", bits)
		}
	}
	return nil
}
