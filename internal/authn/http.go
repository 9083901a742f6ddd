package authn

import (
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"authguard/internal/platform/i18n"
	"authguard/internal/reqctx"
)

// SessionCookie is the cookie carrying the session token for browser clients.
const SessionCookie = "authguard_session"

// MaxBodyBytes bounds JSON request bodies read by DecodeJSON.
const MaxBodyBytes = 1 << 20

// RequestFromHTTP builds the pipeline request for r.
func RequestFromHTTP(r *http.Request) Request {
	req := Request{
		Authorization: r.Header.Get("Authorization"),
		Security:      reqctx.FromRequest(r),
		Resource:      r.Method + " " + r.URL.Path,
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		req.SessionCookie = c.Value
	}
	return req
}

// Middleware runs pol for every request and stores the identity in the request context.
// Rejections are written as {"error": message} with the outcome's status, the message
// in the language preferred by Accept-Language.
func (p *Pipeline) Middleware(pol Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, out := p.Authenticate(r.Context(), pol, RequestFromHTTP(r))
			SetRateLimitHeaders(w, out)
			if !out.OK() {
				if out.Kind == KindInternal {
					log.Error().Str("policy", pol.Name).Str("reason", out.Reason).Str("path", r.URL.Path).Msg("authn: internal error")
				}
				out.Message = i18n.Localize(r.Header.Get("Accept-Language"), out.Message)
				WriteOutcome(w, out)
				return
			}
			if id != nil {
				r = r.WithContext(WithIdentity(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SetRateLimitHeaders writes X-RateLimit-* headers, and Retry-After on rejection.
func SetRateLimitHeaders(w http.ResponseWriter, out Outcome) {
	d := out.RateLimit
	if d == nil {
		return
	}
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	if !d.ResetAt.IsZero() {
		h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
	}
	if out.Kind == KindRateLimited {
		h.Set("Retry-After", strconv.Itoa(d.RetryAfterSeconds()))
	}
}

// WriteOutcome writes a rejected outcome. 429 bodies also carry retryAfter in seconds.
func WriteOutcome(w http.ResponseWriter, out Outcome) {
	if out.Kind == KindRateLimited && out.RateLimit != nil {
		WriteJSON(w, out.Status, map[string]any{"error": out.Message, "retryAfter": out.RateLimit.RetryAfterSeconds()})
		return
	}
	WriteError(w, out.Status, out.Message)
}

// WriteError writes {"error": msg}.
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]any{"error": msg})
}

// DecodeJSON reads the JSON request body into v. Bodies over MaxBodyBytes fail.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

// WriteJSON writes v as the JSON response body with status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("write response body")
	}
}

// SecurityHeaders attaches the standard response hardening headers to every response.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-XSS-Protection", "1; mode=block")
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		h.Set("Content-Security-Policy", "default-src 'self'; frame-ancestors 'none'")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}
