package authsdk

import (
	"context"
	"net/http"
)

// fetch GETs one of the public documents. Any status other than 200 is an
// *APIError, which for /readyz carries the degraded report's status code.
func fetch[T any](ctx context.Context, c *SDKClient, path string) (*T, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	out := new(T)
	if err := decodeJSON(resp, out, http.StatusOK); err != nil {
		return nil, err
	}
	return out, nil
}

// GetLiveness reports whether the process is serving.
func (c *SDKClient) GetLiveness(ctx context.Context) (*HealthResponse, error) {
	return fetch[HealthResponse](ctx, c, "/livez")
}

// GetReadiness reports whether the cache and signing key are usable.
func (c *SDKClient) GetReadiness(ctx context.Context) (*HealthResponse, error) {
	return fetch[HealthResponse](ctx, c, "/readyz")
}

// GetJWKS fetches the key set access tokens are verified against.
func (c *SDKClient) GetJWKS(ctx context.Context) (*JWKSResponse, error) {
	return fetch[JWKSResponse](ctx, c, "/.well-known/jwks.json")
}
