// Package policy maps an authenticated identity to the operations it may perform.
//
// Every access decision in the application goes through Evaluate, so the rules
// below are the whole authorization model.
package policy

import "slices"

// Role is a closed set of role memberships a user can hold
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
	RoleOwner Role = "OWNER"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleOwner:
		return true
	default:
		return false
	}
}

// ParseRoles converts raw role names into roles, dropping unknown names
func ParseRoles(names []string) []Role {
	roles := make([]Role, 0, len(names))
	for _, name := range names {
		role := Role(name)
		if role.Valid() && !slices.Contains(roles, role) {
			roles = append(roles, role)
		}
	}
	return roles
}

// Identity is the authenticated caller of an operation
type Identity struct {
	UserID int
	Email  string
	Roles  []Role
	// Elevated is set only for sessions issued by the admin login flow
	Elevated bool
}

// HasRole reports whether the identity holds the given role
func (i *Identity) HasRole(role Role) bool {
	if i == nil {
		return false
	}
	return slices.Contains(i.Roles, role)
}

// Operation is an action that is subject to authorization
type Operation int

const (
	OpReadPost Operation = iota
	OpCreatePost
	OpUpdateOwnPost
	OpDeleteOwnPost
	OpUpdateAnyPost
	OpDeleteAnyPost
	OpManageTags
	OpViewProfile
	OpElevatedLogin
	OpGrantRole
)

// String returns the operation name used in logs
func (op Operation) String() string {
	switch op {
	case OpReadPost:
		return "read_post"
	case OpCreatePost:
		return "create_post"
	case OpUpdateOwnPost:
		return "update_own_post"
	case OpDeleteOwnPost:
		return "delete_own_post"
	case OpUpdateAnyPost:
		return "update_any_post"
	case OpDeleteAnyPost:
		return "delete_any_post"
	case OpManageTags:
		return "manage_tags"
	case OpViewProfile:
		return "view_profile"
	case OpElevatedLogin:
		return "elevated_login"
	case OpGrantRole:
		return "grant_role"
	default:
		return "unknown"
	}
}

// Evaluate decides whether identity may perform op.
//
// ownerID is the owning user of the target resource and is only consulted by
// the owner-scoped operations. A nil identity or one without a user id is an
// unauthenticated caller.
func Evaluate(identity *Identity, op Operation, ownerID int) bool {
	if op == OpReadPost {
		return true
	}
	if identity == nil || identity.UserID <= 0 {
		return false
	}

	switch op {
	case OpCreatePost, OpViewProfile:
		return true
	case OpUpdateOwnPost, OpDeleteOwnPost:
		return identity.UserID == ownerID
	case OpUpdateAnyPost, OpDeleteAnyPost, OpManageTags, OpElevatedLogin:
		return identity.HasRole(RoleAdmin)
	case OpGrantRole:
		return identity.HasRole(RoleOwner)
	default:
		return false
	}
}
