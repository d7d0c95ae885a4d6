// Package directory defines the upstream user directory the service checks
// credentials against. Drivers live in subpackages.
package directory

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/gatehouse/internal/auth/domain"
)

var (
	ErrUserNotFound = errors.New("directory: user not found")

	// ErrUnavailable wraps transport failures and unexpected upstream
	// responses, which the HTTP layer reports as 503.
	ErrUnavailable = errors.New("directory: unavailable")
)

type Directory interface {
	// FetchUser searches for users matching query. An empty result is not
	// an error.
	FetchUser(ctx context.Context, query string) (*domain.UserSearch, error)

	// GetUser returns ErrUserNotFound when id is unknown.
	GetUser(ctx context.Context, id int64) (*domain.User, error)
}
