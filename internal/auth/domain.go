// Package auth implements bearer-token authentication: issuing and verifying
// the JWT carried by the `token` cookie, resolving the caller behind it, and
// revoking tokens on logout.
package auth

import (
	"errors"

	"github.com/kevin-learn/kevin-server/internal/authz"
)

// Identity is the slice of a user record needed for authentication.
type Identity struct {
	ID           int64
	Name         string
	Mail         string
	PasswordHash string
	Role         authz.Role
}

// ErrInvalidCredentials indicates login failure.
var ErrInvalidCredentials = errors.New("invalid credentials")

// CookieName is the cookie carrying the bearer token.
const CookieName = "token"
