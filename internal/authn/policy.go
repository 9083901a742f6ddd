package authn

import (
	"authguard/internal/audit"
	"authguard/internal/platform/rbac"
	"authguard/internal/ratelimit"
)

// Policy configures one route's pipeline run.
//
// A zero RateLimit skips the rate-limit stage. RateLimitOnly stops after that
// stage, for endpoints such as login where no token exists yet. VerifySession
// selects the session-backed trust model; without it the token is trusted
// until expiry and no activity timestamps are written. Audit controls whether
// the run emits an entry tagged AuditAction.
type Policy struct {
	Name          string
	RateLimit     ratelimit.Policy
	RateLimitOnly bool
	RequireAuth   bool
	AllowedRoles  []rbac.Role
	VerifySession bool
	Audit         bool
	AuditAction   string
}

// RequireAdmin admits active admins with a verified session under the admin budget.
func RequireAdmin() Policy {
	return Policy{
		Name:          "requireAdmin",
		RateLimit:     ratelimit.Admin,
		RequireAuth:   true,
		AllowedRoles:  []rbac.Role{rbac.RoleAdmin},
		VerifySession: true,
		Audit:         true,
		AuditAction:   audit.ActionAPIAccess,
	}
}

// RequireEditor admits editors and admins.
func RequireEditor() Policy {
	return Policy{
		Name:          "requireEditor",
		RateLimit:     ratelimit.Auth,
		RequireAuth:   true,
		AllowedRoles:  []rbac.Role{rbac.RoleEditor, rbac.RoleAdmin},
		VerifySession: true,
		Audit:         true,
		AuditAction:   audit.ActionAPIAccess,
	}
}

// RequireAuth admits any authenticated role under the generous auth budget.
func RequireAuth() Policy {
	return Policy{
		Name:          "requireAuth",
		RateLimit:     ratelimit.Auth,
		RequireAuth:   true,
		VerifySession: true,
		Audit:         true,
		AuditAction:   audit.ActionAPIAccess,
	}
}

// OptionalAuth lets anonymous callers through but still rejects a presented invalid token.
func OptionalAuth() Policy {
	return Policy{
		Name:          "optionalAuth",
		RateLimit:     ratelimit.General,
		VerifySession: true,
	}
}

// ReadOnly trusts the token without consulting the session table. Only for low-risk reads.
func ReadOnly() Policy {
	return Policy{
		Name:        "readOnly",
		RateLimit:   ratelimit.General,
		RequireAuth: true,
	}
}

// LoginAttempt gates the login endpoint before credentials are checked.
func LoginAttempt() Policy {
	return Policy{Name: "loginAttempt", RateLimit: ratelimit.Login, RateLimitOnly: true}
}

// RegistrationAttempt gates the registration endpoint.
func RegistrationAttempt() Policy {
	return Policy{Name: "registrationAttempt", RateLimit: ratelimit.Register, RateLimitOnly: true}
}

// Gate is a rate-limit-only policy over rl, for the remaining public endpoints.
func Gate(rl ratelimit.Policy) Policy {
	return Policy{Name: rl.Name + "Gate", RateLimit: rl, RateLimitOnly: true}
}

// With returns a copy of p with the given audit action. An empty action turns auditing off.
func (p Policy) With(action string) Policy {
	p.Audit = action != ""
	p.AuditAction = action
	return p
}
