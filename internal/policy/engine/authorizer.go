// Package engine decides whether a caller's role satisfies a route's role requirement.
package engine

import (
	"context"

	"authguard/internal/platform/rbac"
)

// Input is what an Authorizer sees about a request.
type Input struct {
	UserID       string
	Role         rbac.Role
	AllowedRoles []rbac.Role
	Resource     string
}

// Authorizer answers role checks for the auth pipeline. An error means the
// decision could not be made; callers treat it as a denial.
type Authorizer interface {
	Authorize(ctx context.Context, in Input) (bool, error)
}

// StaticAuthorizer allows exactly the roles listed on the route.
type StaticAuthorizer struct{}

// Authorize implements Authorizer.
func (StaticAuthorizer) Authorize(_ context.Context, in Input) (bool, error) {
	return rbac.Allowed(in.Role, in.AllowedRoles), nil
}
