package httpx

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/gatehouse/pkg/jwtx"
)

// ErrorResponse is the body of every rejection.
type ErrorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// StatusForKind maps a rejection kind to its HTTP status.
func StatusForKind(kind jwtx.Kind) int {
	switch kind {
	case jwtx.KindMissingScheme:
		return http.StatusBadRequest
	case jwtx.KindInvalidBinding, jwtx.KindJwkMismatch, jwtx.KindReplayedProof:
		return http.StatusForbidden
	default:
		return http.StatusUnauthorized
	}
}

// WriteAuthError writes err as a token rejection. scheme selects the
// WWW-Authenticate challenge; an empty scheme offers both.
func WriteAuthError(w http.ResponseWriter, scheme string, err error) {
	kind := jwtx.KindOf(err)
	WriteAuthErrorStatus(w, StatusForKind(kind), scheme, err)
}

// WriteAuthErrorStatus is WriteAuthError with an explicit status.
func WriteAuthErrorStatus(w http.ResponseWriter, status int, scheme string, err error) {
	kind := jwtx.KindOf(err)
	reason := jwtx.ReasonOf(err)
	w.Header().Set("WWW-Authenticate", challenge(scheme, reason))
	WriteJSON(w, status, ErrorResponse{Error: string(kind), Description: reason})
}

// WriteUnavailable reports that a backing store could not answer in time.
func WriteUnavailable(w http.ResponseWriter) {
	w.Header().Set("Retry-After", "1")
	WriteJSON(w, http.StatusServiceUnavailable, ErrorResponse{
		Error:       "temporarily_unavailable",
		Description: "the service is temporarily unavailable",
	})
}

func challenge(scheme, reason string) string {
	desc := strings.ReplaceAll(reason, `"`, `'`)
	switch scheme {
	case jwtx.TokenTypeDPoP:
		return fmt.Sprintf(`DPoP algs="ES256", error="invalid_token", error_description="%s"`, desc)
	case jwtx.TokenTypeBearer:
		return fmt.Sprintf(`Bearer error="invalid_token", error_description="%s"`, desc)
	default:
		return `Bearer, DPoP algs="ES256"`
	}
}
