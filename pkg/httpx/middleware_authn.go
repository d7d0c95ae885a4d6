package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/gatehouse/pkg/jwtx"
	"github.com/aussiebroadwan/gatehouse/pkg/slogx"
)

// AccessValidator checks Bearer access tokens.
type AccessValidator interface {
	ValidateAccess(token string) (*jwtx.TokenResult, error)
}

// ProofChecker checks DPoP proofs on their own or together with an access
// token. *jwtx.ProofValidator implements it.
type ProofChecker interface {
	ValidateProof(proof, method, target string) (*jwtx.DPoPResult, error)
	ValidateBoundAccess(accessToken, proof, method, target string) (*jwtx.AccessResult, error)
}

// ReplayGuard records proof jtis. MarkProofSeen reports false when the jti
// was already recorded; an error means the guard could not decide.
type ReplayGuard interface {
	MarkProofSeen(ctx context.Context, jti string, ttl time.Duration) (bool, error)
}

// AuthObserver is notified of every gate decision. kind is "" on success.
type AuthObserver interface {
	ObserveAuth(scheme string, kind jwtx.Kind)
}

type AuthConfig struct {
	Tokens AccessValidator
	Proofs ProofChecker
	Replay ReplayGuard

	// ReplayWindow is how long a proof jti stays recorded.
	ReplayWindow time.Duration

	// Observer is optional.
	Observer AuthObserver
}

func (c AuthConfig) replayWindow() time.Duration {
	if c.ReplayWindow <= 0 {
		return jwtx.DefaultReplayWindow
	}
	return c.ReplayWindow
}

func (c AuthConfig) observe(scheme string, kind jwtx.Kind) {
	if c.Observer != nil {
		c.Observer.ObserveAuth(scheme, kind)
	}
}

// ParseAuthorization splits an Authorization header into a canonical scheme
// and its token. ok is false for anything but Bearer or DPoP.
func ParseAuthorization(header string) (scheme, token string, ok bool) {
	raw, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found {
		return "", "", false
	}
	token = strings.TrimSpace(token)
	switch {
	case strings.EqualFold(raw, jwtx.TokenTypeDPoP):
		return jwtx.TokenTypeDPoP, token, true
	case strings.EqualFold(raw, jwtx.TokenTypeBearer):
		return jwtx.TokenTypeBearer, token, true
	}
	return "", "", false
}

// proofHeader returns the single DPoP header. More than one is an error.
func proofHeader(r *http.Request) (string, error) {
	values := r.Header.Values("DPoP")
	switch len(values) {
	case 0:
		return "", nil
	case 1:
		return values[0], nil
	default:
		return "", jwtx.Reject(jwtx.KindInvalidToken, "more than one DPoP proof")
	}
}

// Authenticate requires a valid Bearer or DPoP access token and attaches the
// resulting Identity to the request context.
func Authenticate(cfg AuthConfig) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			scheme, token, ok := ParseAuthorization(r.Header.Get("Authorization"))
			if !ok {
				err := jwtx.Reject(jwtx.KindMissingScheme, "authorization scheme must be Bearer or DPoP")
				cfg.observe("", jwtx.KindMissingScheme)
				log.Warn("authn rejected", "kind", jwtx.KindMissingScheme)
				WriteAuthError(w, "", err)
				return
			}

			var (
				id  *Identity
				err error
			)
			switch scheme {
			case jwtx.TokenTypeBearer:
				id, err = cfg.bearer(token)
			case jwtx.TokenTypeDPoP:
				id, err = cfg.dpop(ctx, token, r)
			}
			if err != nil {
				if isUnavailable(err) {
					log.Error("authn replay guard unavailable", "err", err)
					WriteUnavailable(w)
					return
				}
				kind := jwtx.KindOf(err)
				cfg.observe(scheme, kind)
				log.Warn("authn rejected", "scheme", scheme, "kind", kind, "reason", jwtx.ReasonOf(err))
				WriteAuthError(w, scheme, err)
				return
			}

			cfg.observe(scheme, "")
			ctx = WithIdentity(ctx, id)
			ctx = slogx.With(ctx, "sub", id.Subject, "jti", id.JTI)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (c AuthConfig) bearer(token string) (*Identity, error) {
	res, err := c.Tokens.ValidateAccess(token)
	if err != nil {
		return nil, err
	}
	// A bound token without its proof would turn DPoP into a bearer credential.
	if res.Claims.Bound() {
		return nil, jwtx.Reject(jwtx.KindInvalidBinding, "token is bound to a key, use the DPoP scheme")
	}
	return &Identity{
		Scheme:  jwtx.TokenTypeBearer,
		Subject: res.Claims.Subject,
		JTI:     res.Claims.ID,
		Custom:  res.Claims.Custom,
		Claims:  res.Claims,
	}, nil
}

func (c AuthConfig) dpop(ctx context.Context, token string, r *http.Request) (*Identity, error) {
	proof, err := proofHeader(r)
	if err != nil {
		return nil, err
	}
	res, err := c.Proofs.ValidateBoundAccess(token, proof, r.Method, r.URL.Path)
	if err != nil {
		return nil, err
	}
	if err := c.markSeen(ctx, res.Proof.Claims.JTI); err != nil {
		return nil, err
	}
	claims := res.Access.Claims
	return &Identity{
		Scheme:  jwtx.TokenTypeDPoP,
		Subject: claims.Subject,
		JTI:     claims.ID,
		Custom:  claims.Custom,
		Key:     res.Proof.Key,
		Claims:  claims,
	}, nil
}

func (c AuthConfig) markSeen(ctx context.Context, jti string) error {
	fresh, err := c.Replay.MarkProofSeen(ctx, jti, c.replayWindow())
	if err != nil {
		return &unavailableError{err: err}
	}
	if !fresh {
		return jwtx.Reject(jwtx.KindReplayedProof, "DPoP proof has already been used")
	}
	return nil
}

// AnonymousDPoP accepts an optional DPoP proof on routes that do not require
// an access token. A valid proof is recorded and its key made available via
// ProofKeyFromContext. An invalid proof rejects the request.
func AnonymousDPoP(cfg AuthConfig) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			proof, err := proofHeader(r)
			if err == nil && proof == "" {
				next.ServeHTTP(w, r)
				return
			}

			var res *jwtx.DPoPResult
			if err == nil {
				res, err = cfg.Proofs.ValidateProof(proof, r.Method, r.URL.Path)
			}
			if err == nil {
				err = cfg.markSeen(ctx, res.Claims.JTI)
			}
			if err != nil {
				if isUnavailable(err) {
					log.Error("dpop replay guard unavailable", "err", err)
					WriteUnavailable(w)
					return
				}
				kind := jwtx.KindOf(err)
				cfg.observe(jwtx.TokenTypeDPoP, kind)
				log.Warn("dpop proof rejected", "kind", kind, "reason", jwtx.ReasonOf(err))
				status := http.StatusBadRequest
				if kind == jwtx.KindReplayedProof {
					status = http.StatusForbidden
				}
				WriteAuthErrorStatus(w, status, jwtx.TokenTypeDPoP, err)
				return
			}

			ctx = WithProof(ctx, res)
			ctx = slogx.With(ctx, "jkt", res.Thumbprint)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type unavailableError struct{ err error }

func (e *unavailableError) Error() string { return "replay guard unavailable: " + e.err.Error() }
func (e *unavailableError) Unwrap() error { return e.err }

func isUnavailable(err error) bool {
	var u *unavailableError
	return errors.As(err, &u)
}
