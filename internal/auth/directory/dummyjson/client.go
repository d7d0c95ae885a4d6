package dummyjson

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/gatehouse/internal/auth/directory"
	"github.com/aussiebroadwan/gatehouse/internal/auth/domain"
)

const (
	DefaultBaseURL = "https://dummyjson.com"
	DefaultTimeout = 10 * time.Second
)

// Client reads users from a dummyjson compatible API.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
	}
}

// FetchUser calls GET /users/search?q=<query>.
func (c *Client) FetchUser(ctx context.Context, query string) (*domain.UserSearch, error) {
	var out domain.UserSearch
	if err := c.get(ctx, "/users/search?q="+url.QueryEscape(query), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetUser calls GET /users/{id}.
func (c *Client) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	var out domain.User
	if err := c.get(ctx, "/users/"+strconv.FormatInt(id, 10), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) get(ctx context.Context, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", directory.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return directory.ErrUserNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("%w: %s returned %d", directory.ErrUnavailable, path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("%w: decode response: %v", directory.ErrUnavailable, err)
	}
	return nil
}

var _ directory.Directory = (*Client)(nil)
