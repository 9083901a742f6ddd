package domain

import (
	"errors"
	"time"

	"authguard/internal/platform/rbac"
)

// User is the account record. The auth core only mutates timestamps, the
// failed-login counter, and credentials; role and activation are owned by
// administrative flows.
type User struct {
	ID                  string
	Email               string
	Name                string
	Role                rbac.Role
	PasswordHash        string
	IsActive            bool
	EmailVerified       bool
	FailedLoginAttempts int
	LockedUntil         *time.Time // nil when not locked
	LastLogin           *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.Email == "" {
		return errors.New("email is required")
	}
	if u.PasswordHash == "" {
		return errors.New("password hash is required")
	}
	if u.Role == "" {
		u.Role = rbac.RoleRegular
	}
	return nil
}

// Locked reports whether failed logins have locked the account at now.
func (u *User) Locked(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}
