package httpx

import (
	"context"
	"encoding/json"

	"github.com/aussiebroadwan/gatehouse/pkg/jwtx"
)

type ctxKey string

const (
	ctxKeyIdentity ctxKey = "identity"
	ctxKeyProof    ctxKey = "proof"
)

// Identity is the caller resolved by Authenticate.
type Identity struct {
	// Scheme is jwtx.TokenTypeBearer or jwtx.TokenTypeDPoP.
	Scheme  string
	Subject string
	JTI     string
	Custom  json.RawMessage

	// Key is the proof key for DPoP requests, nil for Bearer.
	Key    *jwtx.JWK
	Claims *jwtx.TokenClaims
}

// Thumbprint returns the bound key thumbprint, or "" for Bearer callers.
func (id *Identity) Thumbprint() string {
	if id == nil || id.Claims == nil || id.Claims.Cnf == nil {
		return ""
	}
	return id.Claims.Cnf.JKT
}

func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, ctxKeyIdentity, id)
}

func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(ctxKeyIdentity).(*Identity)
	return id, ok && id != nil
}

// WithProof stores a proof accepted on an anonymous route.
func WithProof(ctx context.Context, proof *jwtx.DPoPResult) context.Context {
	return context.WithValue(ctx, ctxKeyProof, proof)
}

// ProofKeyFromContext returns the key of the proof accepted by AnonymousDPoP,
// or nil when the request carried none.
func ProofKeyFromContext(ctx context.Context) *jwtx.JWK {
	p, ok := ctx.Value(ctxKeyProof).(*jwtx.DPoPResult)
	if !ok || p == nil {
		return nil
	}
	return p.Key
}
