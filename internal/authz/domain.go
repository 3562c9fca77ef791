// Package authz implements the authorization decision engine. Every mutating
// or querying operation on the platform is gated by Authorize.
package authz

import "fmt"

// Role enumerates account roles. Values match the integer wire encoding used
// by the user_role field.
type Role int

const (
	RoleSuperAdmin Role = 1
	RoleAdmin      Role = 2
	RoleUser       Role = 3
)

// ParseRole converts a raw integer into a Role. Out-of-range values are
// rejected rather than coerced.
func ParseRole(v int) (Role, error) {
	switch Role(v) {
	case RoleSuperAdmin, RoleAdmin, RoleUser:
		return Role(v), nil
	default:
		return 0, fmt.Errorf("authz: unknown role %d", v)
	}
}

// Privileged reports whether the role bypasses ownership checks. This is a
// set membership test; the numeric ordering of roles carries no meaning.
func (r Role) Privileged() bool {
	return r == RoleSuperAdmin || r == RoleAdmin
}

func (r Role) String() string {
	switch r {
	case RoleSuperAdmin:
		return "SuperAdmin"
	case RoleAdmin:
		return "Admin"
	case RoleUser:
		return "User"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// Operation classifies what the caller is attempting.
type Operation int

const (
	// OpRead covers queries. A read with no target (exercise listings) is
	// open to any authenticated caller; user-record reads carry a target.
	OpRead Operation = iota
	// OpWriteOwn mutates a record the caller claims as their own.
	OpWriteOwn
	// OpWriteOther mutates a record belonging to a different user.
	OpWriteOther
	// OpWriteAdminFlag changes a role field, including on the caller's own
	// record.
	OpWriteAdminFlag
	// OpCreatePrivileged creates an Admin or SuperAdmin account.
	OpCreatePrivileged
)

func (o Operation) String() string {
	switch o {
	case OpRead:
		return "Read"
	case OpWriteOwn:
		return "WriteOwn"
	case OpWriteOther:
		return "WriteOther"
	case OpWriteAdminFlag:
		return "WriteAdminFlag"
	case OpCreatePrivileged:
		return "CreatePrivileged"
	default:
		return fmt.Sprintf("Operation(%d)", int(o))
	}
}

// Context identifies the caller for the duration of a single request. It is
// derived from a decoded token and discarded when the request completes.
// Exists is false when the decoded user id matched no stored record; such a
// caller is treated like an unauthenticated one.
type Context struct {
	UserID int64
	Role   Role
	Exists bool
}

// Request is the input to the decision engine. TargetID is nil for
// operations with no target user, such as exercise reads.
type Request struct {
	Caller   Context
	Op       Operation
	TargetID *int64
}

// Decision is the outcome of an authorization check.
type Decision int

const (
	Deny Decision = iota
	Allow
)

func (d Decision) String() string {
	if d == Allow {
		return "ALLOW"
	}
	return "DENY"
}
