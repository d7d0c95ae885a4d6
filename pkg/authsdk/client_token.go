package authsdk

import (
	"context"
	"net/http"
)

// Login exchanges a username and password for a token pair. With a proof
// signer configured the pair is DPoP bound.
func (c *SDKClient) Login(ctx context.Context, username, password string) (*TokenResponse, error) {
	return c.requestToken(ctx, http.MethodPost, LoginRequest{Username: username, Password: password})
}

// Refresh rotates a refresh token. The old pair stops working.
func (c *SDKClient) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	return c.requestToken(ctx, http.MethodPut, RefreshRequest{RefreshToken: refreshToken})
}

// Logout revokes the session behind refreshToken. The service answers 200
// whether or not the token was still valid.
func (c *SDKClient) Logout(ctx context.Context, refreshToken string) error {
	resp, err := c.doProofRequest(ctx, http.MethodDelete, "/v1/token", RefreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return err
	}
	return decodeJSON(resp, nil, http.StatusOK)
}

func (c *SDKClient) requestToken(ctx context.Context, method string, body any) (*TokenResponse, error) {
	resp, err := c.doProofRequest(ctx, method, "/v1/token", body)
	if err != nil {
		return nil, err
	}

	var tokenResp TokenResponse
	if err := decodeJSON(resp, &tokenResp, http.StatusOK); err != nil {
		return nil, err
	}
	return &tokenResp, nil
}
