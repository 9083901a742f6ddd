// Package reqctx derives the caller's security context from an inbound request
// and holds small input hygiene helpers shared by handlers.
package reqctx

import (
	"net/http"
	"strings"
	"time"
)

// Unknown is recorded when no IP or user agent can be determined.
const Unknown = "unknown"

// Security is the caller fingerprint used for rate-limit bucketing and audit
// entries. It is never used for trust decisions.
type Security struct {
	IP        string
	UserAgent string
	Timestamp time.Time
}

// Headers is the subset of request metadata DeriveIdentity reads. It is
// satisfied by http.Header and by gRPC metadata adapters.
type Headers interface {
	Get(key string) string
}

// DeriveIdentity resolves the caller's IP from the first X-Forwarded-For entry,
// then X-Real-IP, else "unknown".
func DeriveIdentity(h Headers, now time.Time) Security {
	ua := strings.TrimSpace(h.Get("User-Agent"))
	if ua == "" {
		ua = Unknown
	}
	return Security{IP: ClientIP(h), UserAgent: ua, Timestamp: now.UTC()}
}

// FromRequest is DeriveIdentity for an HTTP request.
func FromRequest(r *http.Request) Security {
	return DeriveIdentity(r.Header, time.Now())
}

// ClientIP returns the first X-Forwarded-For entry, then X-Real-IP, or "unknown".
func ClientIP(h Headers) string {
	if s := strings.TrimSpace(h.Get("X-Forwarded-For")); s != "" {
		if i := strings.Index(s, ","); i >= 0 {
			s = strings.TrimSpace(s[:i])
		}
		if s != "" {
			return s
		}
	}
	if s := strings.TrimSpace(h.Get("X-Real-IP")); s != "" {
		return s
	}
	return Unknown
}
