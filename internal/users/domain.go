// Package users manages user accounts: registration, querying, updates and
// deletion over the /user endpoint.
package users

import "github.com/kevin-learn/kevin-server/internal/authz"

// User represents a stored account. PasswordHash holds the bcrypt hash of the
// raw credential and is never serialized into responses.
type User struct {
	ID           int64
	Name         string
	PasswordHash string
	Mail         string
	Role         authz.Role
}

// NewUser carries the fields of a registration. Password is the raw secret;
// the service hashes it before it reaches the store.
type NewUser struct {
	Name     string
	Password string
	Mail     string
	Role     authz.Role
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Name     *string
	Password *string
	Mail     *string
	Role     *authz.Role
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Name == nil && p.Password == nil && p.Mail == nil && p.Role == nil
}

// Filter narrows a user query. Zero values mean "no constraint", except
// Limit, which is the page size: a limit of zero selects no rows. Role is a
// pointer because filtering by any concrete role is meaningful.
type Filter struct {
	ID     int64
	Name   string
	Mail   string
	Role   *authz.Role
	Offset int
	Limit  int
}
