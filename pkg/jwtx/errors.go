package jwtx

import (
	"errors"
	"fmt"
)

// Kind classifies why a token, proof or session was rejected. Every
// validation path fails with exactly one Kind so callers can map it to a
// response without inspecting error strings.
type Kind string

const (
	KindMissingToken    Kind = "missing_token"
	KindMissingScheme   Kind = "missing_scheme"
	KindInvalidToken    Kind = "invalid_token"
	KindInvalidIssuer   Kind = "invalid_issuer"
	KindInvalidAudience Kind = "invalid_audience"
	KindExpiredToken    Kind = "expired_token"
	KindInvalidNBF      Kind = "invalid_nbf"
	KindUntimelyToken   Kind = "untimely_token"
	KindInvalidHtm      Kind = "invalid_htm"
	KindInvalidHtu      Kind = "invalid_htu"
	KindUnsyncToken     Kind = "unsync_token"
	KindInvalidAth      Kind = "invalid_ath"
	KindInvalidBinding  Kind = "invalid_binding"
	KindTokenNotFound   Kind = "token_not_found"
	KindTokenMismatch   Kind = "token_mismatch"
	KindJwkMismatch     Kind = "jwk_mismatch"
	KindReplayedProof   Kind = "replayed_proof"
	KindUnexpectedError Kind = "unexpected_error"
)

// Error lets a bare Kind be used as an errors.Is target.
func (k Kind) Error() string { return "jwtx: " + string(k) }

// Error is a rejection carrying its Kind and a human readable reason. The
// wrapped error, if any, is for logs only and never reaches a client.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("jwtx: %s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("jwtx: %s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error or a Kind with the same kind.
func (e *Error) Is(target error) bool {
	switch t := target.(type) {
	case Kind:
		return e.Kind == t
	case *Error:
		return e.Kind == t.Kind
	}
	return false
}

// Reject builds an *Error of the given kind.
func Reject(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

func rejectWrap(kind Kind, reason string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Err: err}
}

// KindOf reports the Kind carried by err. Errors that did not come from a
// validation path are KindUnexpectedError.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var k Kind
	if errors.As(err, &k) {
		return k
	}
	return KindUnexpectedError
}

// ReasonOf returns the client-safe reason for err.
func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Reason != "" {
		return e.Reason
	}
	return "request could not be authenticated"
}
