package csrf

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"authguard/internal/security"
)

// HeaderName carries the presented token.
const HeaderName = "X-CSRF-Token"

// SessionKey derives the binding key from a raw session token so the token itself is never stored.
func SessionKey(sessionToken string) string {
	return security.HashOpaqueToken(sessionToken)
}

// Protect rejects state-changing requests that authenticate with the cookie
// named cookieName unless they carry the token bound to that session.
// Safe methods, bearer-token requests and requests without the cookie pass through.
func Protect(g *Guard, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if safeMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			if _, ok := security.ExtractBearerToken(r.Header.Get("Authorization")); ok {
				next.ServeHTTP(w, r)
				return
			}
			c, err := r.Cookie(cookieName)
			if err != nil || c.Value == "" {
				next.ServeHTTP(w, r)
				return
			}
			err = g.Check(r.Context(), SessionKey(c.Value), r.Header.Get(HeaderName))
			switch {
			case err == nil:
				next.ServeHTTP(w, r)
			case errors.Is(err, ErrTokenMissing), errors.Is(err, ErrTokenInvalid):
				writeError(w, http.StatusForbidden, "invalid CSRF token")
			default:
				log.Error().Err(err).Str("path", r.URL.Path).Msg("csrf: check failed")
				writeError(w, http.StatusInternalServerError, "internal error")
			}
		})
	}
}

func safeMethod(m string) bool {
	switch m {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
