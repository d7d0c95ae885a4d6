package http

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/aussiebroadwan/gatehouse/pkg/authsdk"
	"github.com/aussiebroadwan/gatehouse/pkg/httpx"
	"github.com/aussiebroadwan/gatehouse/pkg/jwtx"
	"github.com/aussiebroadwan/gatehouse/pkg/slogx"
)

// The key set never changes while the process runs.
const jwksCacheControl = "public, max-age=300"

// JWKSHandler godoc
//
//	@Summary		Get JWKS
//	@Description	Returns the JSON Web Key Set resource servers use to verify access tokens offline.
//	@Tags			well-known
//	@Produce		json
//	@Success		200	{object}	authsdk.JWKSResponse	"The JSON Web Key Set"
//	@Router			/.well-known/jwks.json [get].
func JWKSHandler(keys *jwtx.KeySet) http.HandlerFunc {
	encode := sync.OnceValues(func() ([]byte, error) {
		return json.Marshal(authsdk.JWKSResponse(keys.PublicJWKS()))
	})

	return func(w http.ResponseWriter, r *http.Request) {
		body, err := encode()
		if err != nil {
			slogx.FromContext(r.Context()).Error("encode jwks", "err", err)
			httpx.WriteJSON(w, http.StatusInternalServerError, httpx.ErrorResponse{Error: "server_error"})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", jwksCacheControl)
		_, _ = w.Write(body)
	}
}
