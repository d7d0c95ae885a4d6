package authsdk

import (
	"context"
	"net/http"
)

// Me returns the identity the service resolved from the session's access
// token. Automatically refreshes the access token if expired.
func (s *Session) Me(ctx context.Context) (*IdentityResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, "/v1/me", nil)
	if err != nil {
		return nil, err
	}

	var id IdentityResponse
	if err := decodeJSON(resp, &id, http.StatusOK); err != nil {
		return nil, err
	}
	return &id, nil
}
