package backend

import (
	"context"

	"github.com/campusfin/client/internal/domain/identity"
)

// ListUsers returns all users. Admin only on the backend.
func (a *API) ListUsers(ctx context.Context) ([]identity.User, error) {
	var out []identity.User
	if err := a.client.Get(ctx, "/users", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateUser creates a user account
func (a *API) CreateUser(ctx context.Context, cmd identity.CreateUserCommand) (*identity.User, error) {
	var out identity.User
	if err := a.client.Post(ctx, "/users", cmd, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
