// Package credential is the boundary to the credential service: a client
// that exchanges (email, password hash) for a session, and the server-side
// authenticator issuing and verifying the session tokens.
package credential

import (
	"context"
	"errors"

	"arksync/pkg/domain"
)

// ErrInvalidCredentials is returned when no active user matches the email and
// password hash.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Service exchanges credentials for a session. The password hash is passed
// through untouched.
type Service interface {
	Login(ctx context.Context, email, passwordHash string) (domain.Session, error)
}

// LoginRequest is the wire body of a login call.
type LoginRequest struct {
	Email        string `json:"email" validate:"required,email"`
	PasswordHash string `json:"passwordHash" validate:"required"`
}
