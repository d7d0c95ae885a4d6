package jwtx

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"math/big"
	"strconv"
)

// JWK represents a public key in JSON Web Key format (RFC 7517). Signing
// keys published in the JWKS use the metadata fields; keys bound to
// tokens only ever carry kty, crv, x and y.
type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use,omitempty"`
	Alg string `json:"alg,omitempty"`
	Kid string `json:"kid,omitempty"`

	// RSA
	N string `json:"n,omitempty"`
	E string `json:"e,omitempty"`

	// EC
	Crv string `json:"crv,omitempty"`
	X   string `json:"x,omitempty"`
	Y   string `json:"y,omitempty"`
}

// JWKS is a JSON Web Key Set (RFC 7517).
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// NewRSAJWK builds a JWK for an RSA public key.
func NewRSAJWK(kid, use, alg string, pub *rsa.PublicKey) JWK {
	return JWK{
		Kty: "RSA",
		Use: use,
		Alg: alg,
		Kid: kid,
		N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}
}

// NewES256JWK builds a JWK for an ECDSA P-256 public key. Coordinates are
// left padded to the 32 byte field size, otherwise thumbprints of keys
// with a leading zero byte would not match other implementations.
func NewES256JWK(kid, use, alg string, pub *ecdsa.PublicKey) JWK {
	x := make([]byte, 32)
	y := make([]byte, 32)
	pub.X.FillBytes(x)
	pub.Y.FillBytes(y)

	return JWK{
		Kty: "EC",
		Use: use,
		Alg: alg,
		Kid: kid,
		Crv: "P-256",
		X:   base64.RawURLEncoding.EncodeToString(x),
		Y:   base64.RawURLEncoding.EncodeToString(y),
	}
}

// BindingKey returns the bare EC key for pub, as stored in a session.
func BindingKey(pub *ecdsa.PublicKey) *JWK {
	k := NewES256JWK("", "", "", pub)
	return &k
}

// Thumbprint computes the RFC 7638 SHA-256 thumbprint, base64url encoded.
// Only the required members take part, in lexical order, without
// whitespace.
func (j JWK) Thumbprint() (string, error) {
	var canonical string
	switch j.Kty {
	case "EC":
		if j.Crv == "" || j.X == "" || j.Y == "" {
			return "", errors.New("jwtx: incomplete EC key")
		}
		canonical = `{"crv":` + strconv.Quote(j.Crv) +
			`,"kty":"EC","x":` + strconv.Quote(j.X) +
			`,"y":` + strconv.Quote(j.Y) + `}`
	case "RSA":
		if j.N == "" || j.E == "" {
			return "", errors.New("jwtx: incomplete RSA key")
		}
		canonical = `{"e":` + strconv.Quote(j.E) +
			`,"kty":"RSA","n":` + strconv.Quote(j.N) + `}`
	default:
		return "", errors.New("jwtx: unsupported kty " + j.Kty)
	}

	sum := sha256.Sum256([]byte(canonical))
	return base64.RawURLEncoding.EncodeToString(sum[:]), nil
}

// Equal compares the key material of two EC keys.
func (j JWK) Equal(o JWK) bool {
	return j.Kty == o.Kty && j.Crv == o.Crv && j.X == o.X && j.Y == o.Y
}

// ECDSAPublicKey decodes an EC P-256 JWK and checks the point is on the
// curve.
func (j JWK) ECDSAPublicKey() (*ecdsa.PublicKey, error) {
	if j.Kty != "EC" {
		return nil, errors.New("jwtx: not an EC key")
	}
	return decodeP256(j)
}

func decodeP256(j JWK) (*ecdsa.PublicKey, error) {
	if j.Crv != "P-256" {
		return nil, errors.New("jwtx: unsupported EC curve " + j.Crv)
	}
	xb, err := base64.RawURLEncoding.DecodeString(j.X)
	if err != nil {
		return nil, err
	}
	yb, err := base64.RawURLEncoding.DecodeString(j.Y)
	if err != nil {
		return nil, err
	}
	if len(xb) != 32 || len(yb) != 32 {
		return nil, errors.New("jwtx: invalid P-256 coordinate length")
	}

	// Uncompressed SEC 1 point, validated on parse.
	raw := make([]byte, 0, 65)
	raw = append(raw, 0x04)
	raw = append(raw, xb...)
	raw = append(raw, yb...)
	return ecdsa.ParseUncompressedPublicKey(elliptic.P256(), raw)
}
