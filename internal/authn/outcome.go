// Package authn is the single authentication pipeline shared by the HTTP
// middleware and the gRPC interceptors. Each stage returns an Outcome value;
// the first non-passing outcome ends the request.
package authn

import (
	"net/http"

	"authguard/internal/ratelimit"
)

// Kind classifies an Outcome.
type Kind string

const (
	KindAuthenticated   Kind = "authenticated"
	KindAnonymous       Kind = "anonymous"
	KindRateLimited     Kind = "rate_limited"
	KindUnauthenticated Kind = "unauthenticated"
	KindForbidden       Kind = "forbidden"
	KindInternal        Kind = "internal"
)

// Client-facing messages. They never say which credential check failed.
const (
	MsgAuthRequired          = "Authentication required"
	MsgInvalidToken          = "Invalid or expired token"
	MsgSessionExpired        = "Session expired"
	MsgAccountDisabled       = "Account disabled"
	MsgInsufficientPrivilege = "Insufficient privilege"
	MsgInternal              = "Internal server error"
)

// Internal reasons recorded in audit entries and logs, never sent to clients.
const (
	ReasonNoToken         = "no_token"
	ReasonTokenInvalid    = "token_invalid"
	ReasonSessionNotFound = "session_not_found"
	ReasonSessionInactive = "session_inactive"
	ReasonSessionExpired  = "session_expired"
	ReasonSessionMismatch = "session_mismatch"
	ReasonUserNotFound    = "user_not_found"
	ReasonUserDisabled    = "user_disabled"
	ReasonRoleDenied      = "role_denied"
	ReasonLimiterFailure  = "limiter_failure"
	ReasonRateLimited     = "rate_limited"
	ReasonStoreFailure    = "store_failure"
)

// Outcome is the result of running the pipeline. RateLimit is the limiter's
// decision when the rate-limit stage ran.
type Outcome struct {
	Kind      Kind
	Status    int
	Message   string
	Reason    string
	RateLimit *ratelimit.Decision
}

// OK reports whether the request may proceed.
func (o Outcome) OK() bool {
	return o.Kind == KindAuthenticated || o.Kind == KindAnonymous
}

func pass(kind Kind, d *ratelimit.Decision) Outcome {
	return Outcome{Kind: kind, Status: http.StatusOK, RateLimit: d}
}

func rateLimited(d *ratelimit.Decision) Outcome {
	reason := ReasonRateLimited
	if d.Err != nil {
		reason = ReasonLimiterFailure
	}
	return Outcome{Kind: KindRateLimited, Status: http.StatusTooManyRequests, Message: d.Message, Reason: reason, RateLimit: d}
}

func unauthenticated(msg, reason string) Outcome {
	return Outcome{Kind: KindUnauthenticated, Status: http.StatusUnauthorized, Message: msg, Reason: reason}
}

func forbidden(msg, reason string) Outcome {
	return Outcome{Kind: KindForbidden, Status: http.StatusForbidden, Message: msg, Reason: reason}
}

func internal(reason string) Outcome {
	return Outcome{Kind: KindInternal, Status: http.StatusInternalServerError, Message: MsgInternal, Reason: reason}
}
