package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/gatehouse/internal/auth/directory"
	"github.com/aussiebroadwan/gatehouse/internal/auth/service"
	"github.com/aussiebroadwan/gatehouse/pkg/authsdk"
	"github.com/aussiebroadwan/gatehouse/pkg/httpx"
	"github.com/aussiebroadwan/gatehouse/pkg/jwtx"
	"github.com/aussiebroadwan/gatehouse/pkg/slogx"
)

type MeHandler struct {
	SessionService *service.SessionService
}

// ServeHTTP returns the identity resolved by the auth middleware.
//
//	@Summary		Current identity
//	@Description	Returns the subject, custom claims, scheme and key binding of the presented access token,
//	@Description	together with the subject's directory profile when the directory answers.
//	@Tags			Identity
//	@Security		BearerAuth
//	@Security		DPoPAuth
//	@Produce		json
//	@Param			DPoP	header		string						false	"DPoP proof with ath, required for DPoP tokens"
//	@Success		200		{object}	authsdk.IdentityResponse	"sub, scheme, jti, jkt, custom, exp, profile"
//	@Failure		400		{object}	authsdk.ErrorResponse		"Missing or unknown Authorization scheme"
//	@Failure		401		{object}	authsdk.ErrorResponse		"Token rejected"
//	@Failure		403		{object}	authsdk.ErrorResponse		"Binding mismatch or replayed proof"
//	@Failure		503		{object}	authsdk.ErrorResponse		"Replay cache unavailable"
//	@Router			/v1/me [get].
func (h *MeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	id, ok := httpx.IdentityFromContext(ctx)
	if !ok {
		httpx.WriteAuthError(w, "", jwtx.Reject(jwtx.KindMissingToken, "no credentials"))
		return
	}

	resp := authsdk.IdentityResponse{
		Subject: id.Subject,
		Scheme:  id.Scheme,
		JTI:     id.JTI,
		JKT:     id.Thumbprint(),
		Custom:  id.Custom,
	}
	if id.Claims != nil && id.Claims.ExpiresAt != nil {
		resp.ExpiresAt = id.Claims.ExpiresAt.Unix()
	}

	if h.SessionService != nil {
		profile, err := h.SessionService.Profile(ctx, id.Subject)
		switch {
		case err == nil:
			resp.Profile = &authsdk.ProfileResponse{
				ID:        profile.ID,
				Username:  profile.Username,
				FirstName: profile.FirstName,
				LastName:  profile.LastName,
				Email:     profile.Email,
			}
		case errors.Is(err, directory.ErrUserNotFound):
			log.Debug("subject has no directory entry")
		default:
			log.Warn("profile lookup failed", "err", err)
		}
	}

	httpx.WriteJSON(w, http.StatusOK, resp)
}
