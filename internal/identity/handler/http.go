// Package handler serves the account endpoints over the identity service.
package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"authguard/internal/authn"
	"authguard/internal/csrf"
	"authguard/internal/identity/service"
	"authguard/internal/reqctx"
)

// Options configures the account endpoints.
type Options struct {
	// CSRF issues tokens for cookie sessions; nil disables GET /auth/csrf.
	CSRF *csrf.Guard
	// ExposeTokens returns email verification and password reset tokens in
	// responses, for environments without mail delivery. Never set in production.
	ExposeTokens bool
	// SecureCookies marks the session cookie Secure.
	SecureCookies bool
}

// Handler serves /auth endpoints.
type Handler struct {
	svc  *service.AuthService
	opts Options
}

// NewHandler returns a Handler over svc.
func NewHandler(svc *service.AuthService, opts Options) *Handler {
	return &Handler{svc: svc, opts: opts}
}

type userView struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	Role          string `json:"role"`
	EmailVerified bool   `json:"emailVerified"`
}

type sessionView struct {
	User              userView  `json:"user"`
	Token             string    `json:"token"`
	ExpiresAt         time.Time `json:"expiresAt"`
	RefreshToken      string    `json:"refreshToken"`
	RefreshExpiresAt  time.Time `json:"refreshExpiresAt"`
	VerificationToken string    `json:"verificationToken,omitempty"`
}

func (h *Handler) writeSession(w http.ResponseWriter, status int, res *service.AuthResult) {
	h.setSessionCookie(w, res.Token, res.ExpiresAt)
	v := sessionView{
		User: userView{
			ID:            res.User.ID,
			Email:         res.User.Email,
			Name:          res.User.Name,
			Role:          string(res.User.Role),
			EmailVerified: res.User.EmailVerified,
		},
		Token:            res.Token,
		ExpiresAt:        res.ExpiresAt,
		RefreshToken:     res.RefreshToken,
		RefreshExpiresAt: res.RefreshExpiresAt,
	}
	if h.opts.ExposeTokens {
		v.VerificationToken = res.VerificationToken
	}
	authn.WriteJSON(w, status, v)
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, token string, expires time.Time) {
	c := &http.Cookie{
		Name:     authn.SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
	if token == "" {
		c.MaxAge = -1
	} else {
		c.Expires = expires
	}
	http.SetCookie(w, c)
}

// writeServiceError maps service errors to responses; unknown errors are logged and become 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		authn.WriteJSON(w, http.StatusBadRequest, map[string]any{"error": "validation failed", "details": ve.Violations})
	case errors.Is(err, service.ErrEmailAlreadyRegistered):
		authn.WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrInvalidRefreshToken):
		authn.WriteError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrAccountLocked), errors.Is(err, service.ErrAccountDisabled):
		authn.WriteError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrInvalidToken):
		authn.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotOwner):
		authn.WriteError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrSessionNotFound):
		authn.WriteError(w, http.StatusNotFound, err.Error())
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("identity: request failed")
		authn.WriteError(w, http.StatusInternalServerError, authn.MsgInternal)
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := authn.DecodeJSON(w, r, v); err != nil {
		authn.WriteError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// Register handles POST /auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterInput
	if !decode(w, r, &in) {
		return
	}
	res, err := h.svc.Register(r.Context(), in, reqctx.FromRequest(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.writeSession(w, http.StatusCreated, res)
}

// Login handles POST /auth/login and sets the session cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var in service.LoginInput
	if !decode(w, r, &in) {
		return
	}
	res, err := h.svc.Login(r.Context(), in, reqctx.FromRequest(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.writeSession(w, http.StatusOK, res)
}

// Logout handles POST /auth/logout. It always clears the cookie.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token := authn.RequestFromHTTP(r).Token()
	if err := h.svc.Logout(r.Context(), token, reqctx.FromRequest(r)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if h.opts.CSRF != nil && token != "" {
		if err := h.opts.CSRF.Revoke(r.Context(), csrf.SessionKey(token)); err != nil {
			log.Warn().Err(err).Msg("identity: revoke csrf token")
		}
	}
	h.setSessionCookie(w, "", time.Time{})
	authn.WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}

// Refresh handles POST /auth/refresh {refreshToken}.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var in struct {
		RefreshToken string `json:"refreshToken"`
	}
	if !decode(w, r, &in) {
		return
	}
	res, err := h.svc.Refresh(r.Context(), in.RefreshToken)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.writeSession(w, http.StatusOK, res)
}

const resetRequestedMessage = "If the email exists, a password reset link has been sent"

// ForgotPassword handles POST /auth/password/forgot {email}. The response never
// reveals whether the account exists.
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email string `json:"email"`
	}
	if !decode(w, r, &in) {
		return
	}
	token, err := h.svc.RequestPasswordReset(r.Context(), in.Email, reqctx.FromRequest(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	body := map[string]any{"success": true, "message": resetRequestedMessage}
	if h.opts.ExposeTokens && token != "" {
		body["resetToken"] = token
	}
	authn.WriteJSON(w, http.StatusOK, body)
}

// ResetPassword handles POST /auth/password/reset {token, newPassword}.
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var in service.ResetInput
	if !decode(w, r, &in) {
		return
	}
	if err := h.svc.CompletePasswordReset(r.Context(), in, reqctx.FromRequest(r)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	authn.WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}

// ChangePassword handles POST /auth/password/change for the authenticated caller.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	id, ok := authn.IdentityFrom(r.Context())
	if !ok {
		authn.WriteError(w, http.StatusUnauthorized, authn.MsgAuthRequired)
		return
	}
	var in service.ChangePasswordInput
	if !decode(w, r, &in) {
		return
	}
	if err := h.svc.ChangePassword(r.Context(), id.ID, in, reqctx.FromRequest(r)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	authn.WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}

// VerifyEmail handles POST /auth/email/verify {token}.
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Token string `json:"token"`
	}
	if !decode(w, r, &in) {
		return
	}
	if err := h.svc.VerifyEmail(r.Context(), in.Token, reqctx.FromRequest(r)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	authn.WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}

// Me handles GET /auth/me and returns the pipeline identity.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := authn.IdentityFrom(r.Context())
	if !ok {
		authn.WriteError(w, http.StatusUnauthorized, authn.MsgAuthRequired)
		return
	}
	authn.WriteJSON(w, http.StatusOK, id)
}

type ownedSessionView struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	IPAddress string     `json:"ipAddress"`
	UserAgent string     `json:"userAgent"`
	CreatedAt time.Time  `json:"createdAt"`
	LastUsed  *time.Time `json:"lastUsed,omitempty"`
	ExpiresAt time.Time  `json:"expiresAt"`
	Current   bool       `json:"current"`
}

func callerFrom(id *authn.Identity) service.Caller {
	return service.Caller{ID: id.ID, Role: id.Role}
}

// Sessions handles GET /auth/sessions[?userId=]. Only admins may name another user.
func (h *Handler) Sessions(w http.ResponseWriter, r *http.Request) {
	id, ok := authn.IdentityFrom(r.Context())
	if !ok {
		authn.WriteError(w, http.StatusUnauthorized, authn.MsgAuthRequired)
		return
	}
	list, err := h.svc.ListSessions(r.Context(), callerFrom(id), r.URL.Query().Get("userId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := make([]ownedSessionView, 0, len(list))
	for _, s := range list {
		out = append(out, ownedSessionView{
			ID:        s.ID,
			UserID:    s.UserID,
			IPAddress: s.IPAddress,
			UserAgent: s.UserAgent,
			CreatedAt: s.CreatedAt,
			LastUsed:  s.LastUsed,
			ExpiresAt: s.ExpiresAt,
			Current:   s.ID == id.SessionID,
		})
	}
	authn.WriteJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

// RevokeSession handles POST /auth/sessions/{id}/revoke for the session owner or an admin.
func (h *Handler) RevokeSession(w http.ResponseWriter, r *http.Request) {
	id, ok := authn.IdentityFrom(r.Context())
	if !ok {
		authn.WriteError(w, http.StatusUnauthorized, authn.MsgAuthRequired)
		return
	}
	if err := h.svc.RevokeSession(r.Context(), callerFrom(id), chi.URLParam(r, "id"), reqctx.FromRequest(r)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	authn.WriteJSON(w, http.StatusOK, map[string]any{"revoked": true})
}

// CSRFToken handles GET /auth/csrf, binding a fresh token to the caller's session.
func (h *Handler) CSRFToken(w http.ResponseWriter, r *http.Request) {
	if h.opts.CSRF == nil {
		authn.WriteError(w, http.StatusNotImplemented, "csrf protection is not configured")
		return
	}
	token := authn.RequestFromHTTP(r).Token()
	if token == "" {
		authn.WriteError(w, http.StatusUnauthorized, authn.MsgAuthRequired)
		return
	}
	t, err := h.opts.CSRF.Issue(r.Context(), csrf.SessionKey(token))
	if err != nil {
		log.Error().Err(err).Msg("identity: issue csrf token")
		authn.WriteError(w, http.StatusInternalServerError, authn.MsgInternal)
		return
	}
	authn.WriteJSON(w, http.StatusOK, map[string]any{"csrfToken": t, "header": csrf.HeaderName})
}
