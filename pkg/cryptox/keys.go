package cryptox

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
)

// MinRSABits is the smallest RSA modulus accepted for signing.
const MinRSABits = 2048

// GenerateP256 returns a fresh ECDSA P-256 private key.
func GenerateP256() (*ecdsa.PrivateKey, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("cryptox: generate P-256 key: %w", err)
	}
	return key, nil
}

// GenerateRSA returns a fresh RSA private key of the given size.
func GenerateRSA(bits int) (*rsa.PrivateKey, error) {
	if bits < MinRSABits {
		return nil, fmt.Errorf("cryptox: RSA keys need at least %d bits, got %d", MinRSABits, bits)
	}
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("cryptox: generate RSA key: %w", err)
	}
	return key, nil
}

// MarshalPrivateKeyPEM encodes key as a PKCS8 "PRIVATE KEY" block.
func MarshalPrivateKeyPEM(key crypto.Signer) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("cryptox: marshal PKCS8: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}

// ParsePrivateKeyPEM reads the first PEM block of data. PKCS8, PKCS1
// ("RSA PRIVATE KEY") and SEC 1 ("EC PRIVATE KEY") blocks are accepted.
func ParsePrivateKeyPEM(data []byte) (crypto.Signer, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("cryptox: no PEM block found")
	}

	switch block.Type {
	case "PRIVATE KEY":
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("cryptox: parse PKCS8: %w", err)
		}
		key, ok := parsed.(crypto.Signer)
		if !ok {
			return nil, fmt.Errorf("cryptox: %T cannot sign", parsed)
		}
		return key, nil
	case "RSA PRIVATE KEY":
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("cryptox: parse PKCS1: %w", err)
		}
		return key, nil
	case "EC PRIVATE KEY":
		key, err := x509.ParseECPrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("cryptox: parse SEC 1: %w", err)
		}
		return key, nil
	default:
		return nil, fmt.Errorf("cryptox: unsupported PEM block %q", block.Type)
	}
}

// ParseES256KeyHex decodes a raw 32 byte P-256 private scalar given as hex,
// the format keys are kept in when they live in environment variables.
func ParseES256KeyHex(s string) (*ecdsa.PrivateKey, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return nil, fmt.Errorf("cryptox: decode hex key: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("cryptox: P-256 private key must be 32 bytes, got %d", len(raw))
	}
	key, err := ecdsa.ParseRawPrivateKey(elliptic.P256(), raw)
	if err != nil {
		return nil, fmt.Errorf("cryptox: parse P-256 key: %w", err)
	}
	return key, nil
}

// EncodeES256KeyHex is the inverse of ParseES256KeyHex.
func EncodeES256KeyHex(key *ecdsa.PrivateKey) (string, error) {
	raw, err := key.Bytes()
	if err != nil {
		return "", fmt.Errorf("cryptox: encode P-256 key: %w", err)
	}
	return hex.EncodeToString(raw), nil
}
