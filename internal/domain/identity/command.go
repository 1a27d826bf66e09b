package identity

import (
	"strings"

	"github.com/campusfin/client/internal/domain/shared"
)

// Credentials are sent to /auth/login as form fields username and password.
// The username is the user's email.
type Credentials struct {
	Email    string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// NewCredentials builds credentials with surrounding spaces trimmed from
// the email. The password is kept verbatim.
func NewCredentials(email, password string) Credentials {
	return Credentials{Email: strings.TrimSpace(email), Password: password}
}

// Validate rejects blank credentials before any request is made
func (c Credentials) Validate() error {
	c.Email = strings.TrimSpace(c.Email)
	return shared.ValidateStruct("Email and password are required", c)
}

// CreateUserCommand is the body of POST /users
type CreateUserCommand struct {
	Email    string   `json:"email" validate:"required,email"`
	FullName string   `json:"full_name" validate:"required,max=100"`
	Password string   `json:"password" validate:"required,min=8"`
	Roles    []string `json:"roles" validate:"required,min=1,dive,oneof=admin faculty student"`
}

// Validate checks the command
func (c CreateUserCommand) Validate() error {
	return shared.ValidateStruct("Invalid user", c)
}
