package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	adminhandler "authguard/internal/admin/handler"
	"authguard/internal/authn"
	"authguard/internal/csrf"
	healthhandler "authguard/internal/health/handler"
	identityhandler "authguard/internal/identity/handler"
	"authguard/internal/ratelimit"
)

// CORSMaxAge is how long browsers may cache a preflight response, in seconds.
const CORSMaxAge = 86400

// HTTPDeps holds the collaborators of the HTTP router. Nil handlers leave their routes unmounted.
type HTTPDeps struct {
	Pipeline    *authn.Pipeline
	Identity    *identityhandler.Handler
	Admin       *adminhandler.Handler
	Health      *healthhandler.Checker
	CSRF        *csrf.Guard
	CORSOrigins []string
}

// NewRouter builds the HTTP API. Every response carries the security headers;
// each route runs the authn pipeline with the policy listed next to it.
func NewRouter(d HTTPDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(authn.SecurityHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: d.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", csrf.HeaderName},
		ExposedHeaders: []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		MaxAge:         CORSMaxAge,
	}))
	// Cookie-authenticated state changes need a CSRF token; public forms do not.
	protect := func(next http.Handler) http.Handler { return next }
	if d.CSRF != nil {
		protect = csrf.Protect(d.CSRF, authn.SessionCookie)
	}

	if d.Health != nil {
		r.Method(http.MethodGet, "/healthz", d.Health)
	}

	p := d.Pipeline
	if d.Identity != nil {
		h := d.Identity
		r.Route("/auth", func(r chi.Router) {
			r.With(p.Middleware(authn.RegistrationAttempt())).Post("/register", h.Register)
			r.With(p.Middleware(authn.LoginAttempt())).Post("/login", h.Login)
			r.With(protect, p.Middleware(authn.Gate(ratelimit.General))).Post("/logout", h.Logout)
			r.With(p.Middleware(authn.Gate(ratelimit.Sensitive))).Post("/refresh", h.Refresh)
			r.With(p.Middleware(authn.Gate(ratelimit.ForgotPassword))).Post("/password/forgot", h.ForgotPassword)
			r.With(p.Middleware(authn.Gate(ratelimit.Sensitive))).Post("/password/reset", h.ResetPassword)
			r.With(p.Middleware(authn.Gate(ratelimit.VerifyEmail))).Post("/email/verify", h.VerifyEmail)
			r.With(protect, p.Middleware(changePasswordPolicy())).Post("/password/change", h.ChangePassword)
			r.With(p.Middleware(authn.RequireAuth())).Get("/me", h.Me)
			r.With(p.Middleware(authn.RequireAuth())).Get("/csrf", h.CSRFToken)
			r.With(p.Middleware(authn.RequireAuth())).Get("/sessions", h.Sessions)
			r.With(protect, p.Middleware(authn.RequireAuth())).Post("/sessions/{id}/revoke", h.RevokeSession)
		})
	}

	if d.Admin != nil {
		r.Route("/admin", func(r chi.Router) {
			r.Use(protect, p.Middleware(authn.RequireAdmin()))
			d.Admin.Routes(r)
		})
	}

	return otelhttp.NewHandler(r, "authguard.http")
}

// changePasswordPolicy is RequireAuth under the changePassword budget. The
// identity service writes its own password_change entry.
func changePasswordPolicy() authn.Policy {
	pol := authn.RequireAuth().With("")
	pol.Name = "changePassword"
	pol.RateLimit = ratelimit.ChangePassword
	return pol
}

// requestLogger logs one line per request at info, or warn for 5xx.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		ev := log.Info()
		if ww.Status() >= http.StatusInternalServerError {
			ev = log.Warn()
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Msg("http request")
	})
}
