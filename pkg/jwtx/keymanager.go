package jwtx

import (
	"crypto"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/gatehouse/pkg/cryptox"
)

// Supported JWT signing algorithms
const (
	AlgorithmRS256 = "RS256"
	AlgorithmES256 = "ES256"
)

// KeyManager holds the single signing key of a deployment and the KeySet
// its public half is published from. It is built once at startup and
// never mutated afterwards, so it is shared freely across requests.
type KeyManager struct {
	signer    Signer
	keys      *KeySet
	algorithm string
	ephemeral bool
}

// KeyManagerOptions configures the KeyManager.
type KeyManagerOptions struct {
	// Algorithm is "ES256" or "RS256".
	Algorithm string

	// KeyID is published as the kid header and JWKS entry.
	KeyID string

	// PrivateKeyPEM is a PKCS8 (ES256) or PKCS1/PKCS8 (RS256) PEM key.
	PrivateKeyPEM []byte

	// PrivateKeyHex is a raw 32 byte P-256 scalar (ES256 only). Ignored
	// when PrivateKeyPEM is set.
	PrivateKeyHex string

	// RSABits sizes a generated RS256 key. Defaults to 2048.
	RSABits int
}

// NewKeyManager loads the configured key. When no key material is given a
// fresh key is generated; tokens signed with it die with the process.
func NewKeyManager(opts KeyManagerOptions) (*KeyManager, error) {
	if opts.KeyID == "" {
		return nil, errors.New("jwtx: KeyID is required")
	}

	var (
		signer    Signer
		err       error
		ephemeral bool
	)

	switch {
	case len(opts.PrivateKeyPEM) > 0:
		signer, err = NewSignerPEM(opts.Algorithm, opts.KeyID, opts.PrivateKeyPEM)
	case opts.PrivateKeyHex != "":
		if opts.Algorithm != AlgorithmES256 {
			return nil, fmt.Errorf("jwtx: hex keys are only supported for %s", AlgorithmES256)
		}
		signer, err = NewSignerES256Hex(opts.KeyID, opts.PrivateKeyHex)
	default:
		signer, err = generateSigner(opts.Algorithm, opts.KeyID, opts.RSABits)
		ephemeral = true
	}
	if err != nil {
		return nil, err
	}

	if err := signer.Validate(); err != nil {
		return nil, err
	}

	keyset, err := NewKeySet(signer.PublicJWK())
	if err != nil {
		return nil, fmt.Errorf("jwtx: publish signing key: %w", err)
	}

	return &KeyManager{
		signer:    signer,
		keys:      keyset,
		algorithm: opts.Algorithm,
		ephemeral: ephemeral,
	}, nil
}

// generateSigner creates a new in-memory key for the algorithm.
func generateSigner(algorithm, keyID string, rsaBits int) (Signer, error) {
	var (
		key crypto.Signer
		err error
	)
	switch algorithm {
	case AlgorithmES256:
		key, err = cryptox.GenerateP256()
	case AlgorithmRS256:
		if rsaBits == 0 {
			rsaBits = cryptox.MinRSABits
		}
		key, err = cryptox.GenerateRSA(rsaBits)
	default:
		return nil, fmt.Errorf("jwtx: unsupported algorithm %q (supported: RS256, ES256)", algorithm)
	}
	if err != nil {
		return nil, fmt.Errorf("jwtx: generate %s key: %w", algorithm, err)
	}
	return NewSigner(keyID, key)
}

func (km *KeyManager) Signer() Signer    { return km.signer }
func (km *KeyManager) KeySet() *KeySet   { return km.keys }
func (km *KeyManager) Algorithm() string { return km.algorithm }

// Ephemeral reports whether the key was generated at startup.
func (km *KeyManager) Ephemeral() bool { return km.ephemeral }

// IsReady returns true if the KeyManager has valid keys loaded.
func (km *KeyManager) IsReady() bool {
	return km.signer != nil && km.keys.IsReady()
}
