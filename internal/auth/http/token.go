package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/aussiebroadwan/gatehouse/internal/auth/metrics"
	"github.com/aussiebroadwan/gatehouse/internal/auth/service"
	"github.com/aussiebroadwan/gatehouse/pkg/authsdk"
	"github.com/aussiebroadwan/gatehouse/pkg/httpx"
	"github.com/aussiebroadwan/gatehouse/pkg/jwtx"
	"github.com/aussiebroadwan/gatehouse/pkg/slogx"
)

// TokenHandler serves POST, PUT and DELETE /v1/token. A valid DPoP proof
// on the request, checked by httpx.AnonymousDPoP, binds the issued pair.
type TokenHandler struct {
	SessionService *service.SessionService
	Metrics        *metrics.Metrics
}

// HandleLogin godoc
//
//	@Summary		Log in
//	@Description	Exchanges a username and password for an access/refresh token pair.
//	@Description	When the request carries a valid DPoP proof both tokens are bound to the proof key and token_type is "DPoP".
//	@Tags			Token
//	@Accept			json
//	@Produce		json
//	@Param			DPoP	header		string					false	"DPoP proof for htm=POST, htu={base}/v1/token"
//	@Param			request	body		authsdk.LoginRequest	true	"Credentials"
//	@Success		200		{object}	authsdk.TokenResponse	"token_type, access_token, refresh_token, expires_in"
//	@Failure		400		{object}	authsdk.ErrorResponse	"Malformed body or invalid DPoP proof"
//	@Failure		401		{object}	authsdk.ErrorResponse	"Invalid credentials"
//	@Failure		403		{object}	authsdk.ErrorResponse	"Replayed DPoP proof"
//	@Failure		429		{object}	authsdk.ErrorResponse	"Rate limit exceeded"
//	@Failure		503		{object}	authsdk.ErrorResponse	"Cache or directory unavailable"
//	@Header			200		{string}	Cache-Control			"no-store"
//	@Router			/v1/token [post].
func (h *TokenHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var req authsdk.LoginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.Username == "" || req.Password == "" {
		h.observe("login", authsdk.ErrorCodeInvalidRequest, started)
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	pair, err := h.SessionService.Login(r.Context(), req.Username, req.Password, httpx.ProofKeyFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, "login", err, started)
		return
	}

	h.observe("login", "", started)
	httpx.WriteJSON(w, http.StatusOK, authsdk.NewTokenResponse(pair))
}

// HandleRefresh godoc
//
//	@Summary		Refresh
//	@Description	Rotates a refresh token into a new pair. The presented refresh token stops working.
//	@Description	A DPoP session must present a proof signed by the key it was issued to.
//	@Tags			Token
//	@Accept			json
//	@Produce		json
//	@Param			DPoP	header		string					false	"DPoP proof for htm=PUT, htu={base}/v1/token"
//	@Param			request	body		authsdk.RefreshRequest	true	"Refresh token"
//	@Success		200		{object}	authsdk.TokenResponse	"token_type, access_token, refresh_token, expires_in"
//	@Failure		400		{object}	authsdk.ErrorResponse	"Malformed body or invalid DPoP proof"
//	@Failure		401		{object}	authsdk.ErrorResponse	"Refresh token rejected (e.g. token_not_found, untimely_token)"
//	@Failure		403		{object}	authsdk.ErrorResponse	"jwk_mismatch or replayed_proof"
//	@Failure		503		{object}	authsdk.ErrorResponse	"Cache unavailable"
//	@Header			200		{string}	Cache-Control			"no-store"
//	@Router			/v1/token [put].
func (h *TokenHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var req authsdk.RefreshRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.RefreshToken == "" {
		h.observe("refresh", authsdk.ErrorCodeInvalidRequest, started)
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	pair, err := h.SessionService.Refresh(r.Context(), req.RefreshToken, httpx.ProofKeyFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, "refresh", err, started)
		return
	}

	h.observe("refresh", "", started)
	httpx.WriteJSON(w, http.StatusOK, authsdk.NewTokenResponse(pair))
}

// HandleLogout godoc
//
//	@Summary		Log out
//	@Description	Revokes the session of a refresh token. Answers 200 whether or not the token was still active.
//	@Tags			Token
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.RefreshRequest	true	"Refresh token"
//	@Success		200		{object}	object					"empty object"
//	@Failure		400		{object}	authsdk.ErrorResponse	"Malformed body or invalid DPoP proof"
//	@Router			/v1/token [delete].
func (h *TokenHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var req authsdk.RefreshRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.observe("logout", authsdk.ErrorCodeInvalidRequest, started)
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	h.SessionService.Logout(r.Context(), req.RefreshToken)

	h.observe("logout", "", started)
	httpx.WriteJSON(w, http.StatusOK, struct{}{})
}

func (h *TokenHandler) fail(w http.ResponseWriter, r *http.Request, op string, err error, started time.Time) {
	log := slogx.FromContext(r.Context())

	var rejection *jwtx.Error
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		h.observe(op, authsdk.ErrorCodeInvalidGrant, started)
		authsdk.ErrInvalidCredentials.WriteError(w)
	case errors.Is(err, service.ErrUnavailable):
		h.observe(op, authsdk.ErrorCodeTemporarilyUnavailable, started)
		w.Header().Set("Retry-After", "1")
		authsdk.ErrUnavailable.WriteError(w)
	case errors.As(err, &rejection):
		log.Warn(op+" rejected", "kind", rejection.Kind, "reason", rejection.Reason)
		h.observe(op, string(rejection.Kind), started)
		authsdk.FromRejection(err).WriteError(w)
	default:
		log.Error(op+" failed", "err", err)
		h.observe(op, authsdk.ErrorCodeServerError, started)
		authsdk.ErrServerError.WriteError(w)
	}
}

func (h *TokenHandler) observe(op, outcome string, started time.Time) {
	if h.Metrics != nil {
		h.Metrics.ObserveTokenOp(op, outcome, started)
	}
}
