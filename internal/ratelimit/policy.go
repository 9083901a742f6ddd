package ratelimit

import (
	"errors"
	"time"
)

// ErrInvalidPolicy is reported (and the request rejected) when a policy has a
// non-positive window or maximum.
var ErrInvalidPolicy = errors.New("ratelimit: invalid policy")

// Policy is an independent request budget: at most Max requests per Window.
type Policy struct {
	Name    string
	Window  time.Duration
	Max     int
	Message string
}

func (p Policy) validate() error {
	if p.Window <= 0 || p.Max <= 0 {
		return ErrInvalidPolicy
	}
	return nil
}

// Named policies. Each is tracked separately, so one caller may be within
// budget on one and blocked on another.
var (
	Login          = Policy{Name: "login", Window: 15 * time.Minute, Max: 5, Message: "Too many login attempts, please try again later"}
	Register       = Policy{Name: "register", Window: time.Hour, Max: 3, Message: "Too many registration attempts, please try again later"}
	ForgotPassword = Policy{Name: "forgotPassword", Window: time.Hour, Max: 3, Message: "Too many password reset requests, please try again later"}
	VerifyEmail    = Policy{Name: "verifyEmail", Window: time.Hour, Max: 10, Message: "Too many email verification attempts, please try again later"}
	UpdateProfile  = Policy{Name: "updateProfile", Window: time.Hour, Max: 20, Message: "Too many profile updates, please try again later"}
	ChangePassword = Policy{Name: "changePassword", Window: time.Hour, Max: 5, Message: "Too many password change attempts, please try again later"}
	General        = Policy{Name: "general", Window: 15 * time.Minute, Max: 100, Message: "Too many requests, please try again later"}
	Sensitive      = Policy{Name: "sensitive", Window: time.Minute, Max: 10, Message: "Too many requests to a sensitive endpoint, please try again later"}
	Admin          = Policy{Name: "admin", Window: 15 * time.Minute, Max: 20, Message: "Too many administrative requests, please try again later"}
	Auth           = Policy{Name: "auth", Window: 15 * time.Minute, Max: 60, Message: "Too many requests, please try again later"}
)

var byName = map[string]Policy{}

func init() {
	for _, p := range []Policy{Login, Register, ForgotPassword, VerifyEmail, UpdateProfile, ChangePassword, General, Sensitive, Admin, Auth} {
		byName[p.Name] = p
	}
}

// PolicyByName returns the named built-in policy.
func PolicyByName(name string) (Policy, bool) {
	p, ok := byName[name]
	return p, ok
}

// Key scopes identifier to policy so policies never share counters.
func Key(policy, identifier string) string {
	return policy + ":" + identifier
}
