package http

import (
	"context"
	"net/http"
	"time"

	"github.com/aussiebroadwan/gatehouse/pkg/authsdk"
	"github.com/aussiebroadwan/gatehouse/pkg/httpx"
	"github.com/aussiebroadwan/gatehouse/pkg/jwtx"
	"github.com/aussiebroadwan/gatehouse/pkg/slogx"
)

const readinessTimeout = 2 * time.Second

type pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler answers the liveness and readiness probes.
type HealthHandler struct {
	Started time.Time
	Version string
	Cache   pinger
	Keys    *jwtx.KeySet
}

func (h *HealthHandler) report(status string, checks *authsdk.HealthChecks) authsdk.HealthResponse {
	return authsdk.HealthResponse{
		Status:  status,
		Uptime:  time.Since(h.Started).Round(time.Second).String(),
		Version: h.Version,
		Checks:  checks,
	}
}

// Live godoc
//
//	@Summary		Liveness probe
//	@Description	Returns 200 whenever the process is serving, without touching dependencies
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.HealthResponse	"status, uptime, version"
//	@Router			/livez [get].
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, h.report("ok", nil))
}

// Ready godoc
//
//	@Summary		Readiness probe
//	@Description	Checks that the token cache answers and that the signing key is published
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.HealthResponse	"status, uptime, version, checks"
//	@Failure		503	{object}	authsdk.HealthResponse	"a dependency is down"
//	@Router			/readyz [get].
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	checks := &authsdk.HealthChecks{Cache: "ok", Signer: "ok"}

	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()
	if err := h.Cache.Ping(ctx); err != nil {
		slogx.FromContext(ctx).Warn("cache ping failed", "err", err)
		checks.Cache = "error: unreachable"
	}
	if !h.Keys.IsReady() {
		checks.Signer = "error: no keys loaded"
	}

	if checks.Cache != "ok" || checks.Signer != "ok" {
		httpx.WriteJSON(w, http.StatusServiceUnavailable, h.report("degraded", checks))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.report("ok", checks))
}
