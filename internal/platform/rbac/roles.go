// Package rbac defines user roles, role membership and ownership checks.
package rbac

import "strings"

// Role is a user role. The set is extensible: unknown roles are carried through
// and only match allow lists that name them.
type Role string

const (
	RoleRegular Role = "regular"
	RoleEditor  Role = "editor"
	RoleAdmin   Role = "admin"
)

// Parse normalizes s into a Role. "reader" and "user" are accepted as aliases of regular.
func Parse(s string) Role {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case "reader", "user", "":
		return RoleRegular
	}
	return r
}

// Allowed reports whether r is a member of allowed. An empty set allows every role.
func Allowed(r Role, allowed []Role) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == r {
			return true
		}
	}
	return false
}

// CanAccessOwned reports whether a caller may act on a resource owned by ownerID:
// admins always may, everyone else only on their own resources.
func CanAccessOwned(role Role, callerID, ownerID string) bool {
	if role == RoleAdmin {
		return true
	}
	return callerID != "" && callerID == ownerID
}
