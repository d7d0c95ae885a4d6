package httpx

import (
	"net/http"

	"github.com/aussiebroadwan/gatehouse/pkg/jwtx"
	"github.com/aussiebroadwan/gatehouse/pkg/slogx"
)

// RequireScheme rejects identities presented with any other scheme. Use it
// after Authenticate to make a route DPoP only.
func RequireScheme(scheme string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				WriteAuthError(w, "", jwtx.Reject(jwtx.KindMissingToken, "no authenticated identity"))
				return
			}
			if id.Scheme != scheme {
				slogx.FromContext(r.Context()).Warn("authz rejected", "scheme", id.Scheme, "required", scheme)
				WriteAuthError(w, scheme, jwtx.Reject(jwtx.KindInvalidBinding, "this resource requires "+scheme+" bound tokens"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
