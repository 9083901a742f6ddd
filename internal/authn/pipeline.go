package authn

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"authguard/internal/audit"
	"authguard/internal/platform/rbac"
	"authguard/internal/policy/engine"
	"authguard/internal/ratelimit"
	"authguard/internal/reqctx"
	"authguard/internal/security"
	sessiondomain "authguard/internal/session/domain"
	userdomain "authguard/internal/user/domain"
)

// Identity is the authenticated caller handed to route handlers.
type Identity struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      rbac.Role `json:"role"`
	SessionID string    `json:"sessionId"`
}

// Request is the transport-independent view of an inbound call.
type Request struct {
	Authorization string // raw Authorization header or metadata value
	SessionCookie string // session token from the cookie, if any
	Security      reqctx.Security
	Resource      string // route or method, for audit and authorization
}

// TokenVerifier verifies a signed session token; nil means invalid for any reason.
type TokenVerifier interface {
	Verify(token string) *security.Claims
}

// SessionStore is the session lookup the pipeline needs.
type SessionStore interface {
	GetByToken(ctx context.Context, token string) (*sessiondomain.Session, error)
	UpdateLastUsed(ctx context.Context, id string, at time.Time) error
}

// UserStore is the user lookup the pipeline needs.
type UserStore interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
}

// Pipeline runs rate limit, token, session, user, role, then side effects.
type Pipeline struct {
	limiter  *ratelimit.Limiter
	tokens   TokenVerifier
	sessions SessionStore
	users    UserStore
	authz    engine.Authorizer
	audit    audit.AuditLogger
	now      func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithAuthorizer replaces the default static role check.
func WithAuthorizer(a engine.Authorizer) Option {
	return func(p *Pipeline) { p.authz = a }
}

// WithAuditLogger sets where audit entries go. Without it nothing is audited.
func WithAuditLogger(l audit.AuditLogger) Option {
	return func(p *Pipeline) { p.audit = l }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// NewPipeline returns a Pipeline over the given collaborators.
func NewPipeline(limiter *ratelimit.Limiter, tokens TokenVerifier, sessions SessionStore, users UserStore, opts ...Option) *Pipeline {
	p := &Pipeline{
		limiter:  limiter,
		tokens:   tokens,
		sessions: sessions,
		users:    users,
		authz:    engine.StaticAuthorizer{},
		now:      time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Limiter returns the limiter shared by every policy.
func (p *Pipeline) Limiter() *ratelimit.Limiter {
	return p.limiter
}

// Authenticate runs pol against req. The identity is non-nil only for KindAuthenticated.
// Stages run in order and a rejected stage leaves no side effect behind.
func (p *Pipeline) Authenticate(ctx context.Context, pol Policy, req Request) (*Identity, Outcome) {
	var decision *ratelimit.Decision
	if pol.RateLimit.Name != "" {
		d := p.limiter.Check(ratelimit.Key(pol.RateLimit.Name, req.Security.IP), pol.RateLimit)
		decision = &d
		if !d.Allowed {
			out := rateLimited(decision)
			log.Warn().Str("policy", pol.RateLimit.Name).Str("ip", req.Security.IP).
				Int("retry_after", d.RetryAfterSeconds()).Msg("rate limit exceeded")
			p.record(ctx, pol, req, "", out)
			return nil, out
		}
	}
	if pol.RateLimitOnly {
		return nil, pass(KindAnonymous, decision)
	}

	token := req.Token()
	if token == "" {
		if !pol.RequireAuth {
			return nil, pass(KindAnonymous, decision)
		}
		out := unauthenticated(MsgAuthRequired, ReasonNoToken)
		p.record(ctx, pol, req, "", out)
		return nil, withDecision(out, decision)
	}

	claims := p.tokens.Verify(token)
	if claims == nil {
		out := unauthenticated(MsgInvalidToken, ReasonTokenInvalid)
		p.record(ctx, pol, req, "", out)
		return nil, withDecision(out, decision)
	}

	now := p.now()
	var sess *sessiondomain.Session
	if pol.VerifySession {
		var out Outcome
		sess, out = p.checkSession(ctx, token, claims, now)
		if !out.OK() {
			p.record(ctx, pol, req, claims.SubjectID, out)
			return nil, withDecision(out, decision)
		}
	}

	u, err := p.users.GetByID(ctx, claims.SubjectID)
	if err != nil {
		log.Error().Err(err).Str("user_id", claims.SubjectID).Msg("authn: user lookup failed")
		return nil, withDecision(internal(ReasonStoreFailure), decision)
	}
	if u == nil {
		out := unauthenticated(MsgInvalidToken, ReasonUserNotFound)
		p.record(ctx, pol, req, claims.SubjectID, out)
		return nil, withDecision(out, decision)
	}
	if !u.IsActive {
		out := forbidden(MsgAccountDisabled, ReasonUserDisabled)
		p.record(ctx, pol, req, u.ID, out)
		return nil, withDecision(out, decision)
	}

	if len(pol.AllowedRoles) > 0 {
		ok, err := p.authz.Authorize(ctx, engine.Input{
			UserID: u.ID, Role: u.Role, AllowedRoles: pol.AllowedRoles, Resource: req.Resource,
		})
		if err != nil {
			log.Error().Err(err).Str("user_id", u.ID).Str("resource", req.Resource).Msg("authn: authorizer failed, denying")
		}
		if err != nil || !ok {
			out := forbidden(MsgInsufficientPrivilege, ReasonRoleDenied)
			p.record(ctx, pol, req, u.ID, out)
			return nil, withDecision(out, decision)
		}
	}

	id := &Identity{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role, SessionID: claims.SessionID}
	if sess != nil {
		if err := p.sessions.UpdateLastUsed(ctx, sess.ID, now); err != nil {
			log.Warn().Err(err).Str("session_id", sess.ID).Msg("authn: update session last used")
		}
		if err := p.users.UpdateLastLogin(ctx, u.ID, now); err != nil {
			log.Warn().Err(err).Str("user_id", u.ID).Msg("authn: update user last login")
		}
	}
	out := pass(KindAuthenticated, decision)
	p.record(ctx, pol, req, u.ID, out)
	return id, out
}

func (p *Pipeline) checkSession(ctx context.Context, token string, claims *security.Claims, now time.Time) (*sessiondomain.Session, Outcome) {
	s, err := p.sessions.GetByToken(ctx, token)
	if err != nil {
		log.Error().Err(err).Str("session_id", claims.SessionID).Msg("authn: session lookup failed")
		return nil, internal(ReasonStoreFailure)
	}
	switch {
	case s == nil:
		return nil, unauthenticated(MsgSessionExpired, ReasonSessionNotFound)
	case s.ID != claims.SessionID || s.UserID != claims.SubjectID:
		return nil, unauthenticated(MsgSessionExpired, ReasonSessionMismatch)
	case !s.IsActive:
		return nil, unauthenticated(MsgSessionExpired, ReasonSessionInactive)
	case !s.Usable(now):
		return nil, unauthenticated(MsgSessionExpired, ReasonSessionExpired)
	}
	return s, pass(KindAuthenticated, nil)
}

func (p *Pipeline) record(ctx context.Context, pol Policy, req Request, userID string, out Outcome) {
	if !pol.Audit || p.audit == nil {
		return
	}
	ev := audit.Event{
		Action:   pol.AuditAction,
		UserID:   userID,
		Resource: req.Resource,
		Details:  map[string]any{"policy": pol.Name},
		Security: req.Security,
		Success:  out.OK(),
	}
	if !out.OK() {
		ev.Error = out.Reason
		ev.Details["status"] = out.Status
	}
	p.audit.LogEvent(ctx, ev)
}

// Token returns the presented session token, preferring the bearer header over the cookie.
func (r Request) Token() string {
	if t, ok := security.ExtractBearerToken(r.Authorization); ok {
		return t
	}
	return r.SessionCookie
}

func withDecision(o Outcome, d *ratelimit.Decision) Outcome {
	o.RateLimit = d
	return o
}
