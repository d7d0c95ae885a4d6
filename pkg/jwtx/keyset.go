package jwtx

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
)

var ErrNoKey = errors.New("jwtx: key not found")

// KeySet is the public half of the signing keys, indexed by kid. It is
// complete once NewKeySet returns and is only read afterwards, so it needs
// no locking.
type KeySet struct {
	published []JWK
	byKID     map[string]any // *ecdsa.PublicKey | *rsa.PublicKey
}

// NewKeySet decodes keys. Every key needs a distinct kid.
func NewKeySet(keys ...JWK) (*KeySet, error) {
	ks := &KeySet{
		published: make([]JWK, 0, len(keys)),
		byKID:     make(map[string]any, len(keys)),
	}
	for _, j := range keys {
		if j.Kid == "" {
			return nil, errors.New("jwtx: JWK without kid")
		}
		if _, dup := ks.byKID[j.Kid]; dup {
			return nil, fmt.Errorf("jwtx: duplicate kid %q", j.Kid)
		}
		pub, err := publicKey(j)
		if err != nil {
			return nil, fmt.Errorf("jwtx: kid %q: %w", j.Kid, err)
		}
		ks.byKID[j.Kid] = pub
		ks.published = append(ks.published, j)
	}
	return ks, nil
}

// Get returns the public key published under kid.
func (k *KeySet) Get(kid string) (any, error) {
	if pub, ok := k.byKID[kid]; ok {
		return pub, nil
	}
	return nil, ErrNoKey
}

// Keyfunc resolves the kid header of a token being parsed.
func (k *KeySet) Keyfunc(t *jwt.Token) (any, error) {
	kid, _ := t.Header["kid"].(string)
	if kid == "" {
		return nil, errors.New("jwtx: missing kid")
	}
	pub, err := k.Get(kid)
	if err != nil {
		return nil, fmt.Errorf("jwtx: unknown kid %q: %w", kid, err)
	}
	return pub, nil
}

// PublicJWKS returns a copy of the set for serving.
func (k *KeySet) PublicJWKS() JWKS {
	return JWKS{Keys: slices.Clone(k.published)}
}

func (k *KeySet) IsReady() bool {
	return k != nil && len(k.byKID) > 0
}

// publicKey lets go-jose decode j; it rejects private members and EC
// points that are not on the curve.
func publicKey(j JWK) (any, error) {
	raw, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	var jk jose.JSONWebKey
	if err := jk.UnmarshalJSON(raw); err != nil {
		return nil, err
	}
	if !jk.IsPublic() {
		return nil, errors.New("not a public key")
	}
	return jk.Key, nil
}
