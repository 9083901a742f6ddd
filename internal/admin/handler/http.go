// Package handler exposes the administrative operations: rate-limit key management,
// session revocation and audit log listing. Callers must already have passed the
// admin pipeline.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"authguard/internal/audit"
	auditdomain "authguard/internal/audit/domain"
	auditrepo "authguard/internal/audit/repository"
	"authguard/internal/authn"
	"authguard/internal/ratelimit"
	"authguard/internal/reqctx"
	sessiondomain "authguard/internal/session/domain"
)

// MaxBlockDuration caps a manual block.
const MaxBlockDuration = 30 * 24 * time.Hour

var (
	errKeyRequired        = errors.New("key is required")
	errDurationInvalid    = errors.New("durationSeconds must be positive")
	errUnknownPolicy      = errors.New("unknown rate limit policy")
	errIdentifierRequired = errors.New("identifier is required with policy")
)

// SessionStore is the session access revocation needs.
type SessionStore interface {
	GetByID(ctx context.Context, id string) (*sessiondomain.Session, error)
	Deactivate(ctx context.Context, id string) error
}

// AuditLister lists stored audit entries.
type AuditLister interface {
	List(ctx context.Context, f auditrepo.ListFilter) ([]*auditdomain.Entry, error)
}

// Handler serves the admin endpoints over a shared limiter and stores.
type Handler struct {
	limiter  *ratelimit.Limiter
	sessions SessionStore
	entries  AuditLister
	audit    audit.AuditLogger
}

// NewHandler returns a Handler. A nil entries lister makes the audit listing return 501.
func NewHandler(limiter *ratelimit.Limiter, sessions SessionStore, entries AuditLister, auditLogger audit.AuditLogger) *Handler {
	if auditLogger == nil {
		auditLogger = audit.NewLogger(nil)
	}
	return &Handler{limiter: limiter, sessions: sessions, entries: entries, audit: auditLogger}
}

// Routes mounts the admin endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/ratelimit/block", h.block)
	r.Post("/ratelimit/unblock", h.unblock)
	r.Get("/ratelimit/status", h.status)
	r.Post("/sessions/{id}/revoke", h.revokeSession)
	r.Get("/audit", h.listAudit)
}

type blockRequest struct {
	Key             string `json:"key"`
	Policy          string `json:"policy"`
	Identifier      string `json:"identifier"`
	DurationSeconds int64  `json:"durationSeconds"`
}

// ResolveKey returns key when set, otherwise the limiter key of the named
// built-in policy and identifier.
func ResolveKey(key, policy, identifier string) (string, error) {
	if key = strings.TrimSpace(key); key != "" {
		return key, nil
	}
	if policy == "" {
		return "", errKeyRequired
	}
	p, ok := ratelimit.PolicyByName(policy)
	if !ok {
		return "", errUnknownPolicy
	}
	if identifier = strings.TrimSpace(identifier); identifier == "" {
		return "", errIdentifierRequired
	}
	return ratelimit.Key(p.Name, identifier), nil
}

// BlockDuration converts seconds to a duration, clamping to MaxBlockDuration
// before the multiplication can overflow. Non-positive input yields 0.
func BlockDuration(seconds float64) time.Duration {
	switch {
	case seconds <= 0:
		return 0
	case seconds >= MaxBlockDuration.Seconds():
		return MaxBlockDuration
	}
	return time.Duration(seconds) * time.Second
}

// Block blocks key for duration, clamped to MaxBlockDuration, and returns the block expiry.
func (h *Handler) Block(key string, duration time.Duration) (time.Time, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return time.Time{}, errKeyRequired
	}
	if duration <= 0 {
		return time.Time{}, errDurationInvalid
	}
	if duration > MaxBlockDuration {
		duration = MaxBlockDuration
	}
	h.limiter.Block(key, duration)
	e, _ := h.limiter.Status(key)
	return e.BlockedUntil, nil
}

func (h *Handler) block(w http.ResponseWriter, r *http.Request) {
	var req blockRequest
	if err := authn.DecodeJSON(w, r, &req); err != nil {
		authn.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	key, err := ResolveKey(req.Key, req.Policy, req.Identifier)
	if err != nil {
		authn.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	until, err := h.Block(key, BlockDuration(float64(req.DurationSeconds)))
	if err != nil {
		authn.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	authn.WriteJSON(w, http.StatusOK, map[string]any{"key": key, "blocked": true, "blockedUntil": until})
}

func (h *Handler) unblock(w http.ResponseWriter, r *http.Request) {
	var req blockRequest
	if err := authn.DecodeJSON(w, r, &req); err != nil {
		authn.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	key, err := ResolveKey(req.Key, req.Policy, req.Identifier)
	if err != nil {
		authn.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.limiter.Unblock(key)
	authn.WriteJSON(w, http.StatusOK, map[string]any{"key": key, "blocked": false})
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	key, err := ResolveKey(q.Get("key"), q.Get("policy"), q.Get("identifier"))
	if err != nil {
		authn.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	e, ok := h.limiter.Status(key)
	if !ok {
		authn.WriteError(w, http.StatusNotFound, "no entry for key")
		return
	}
	authn.WriteJSON(w, http.StatusOK, map[string]any{"key": key, "entry": e})
}

// RevokeSession deactivates session id. found is false when no such session exists.
func (h *Handler) RevokeSession(ctx context.Context, id, actorID string, sec reqctx.Security) (found bool, err error) {
	sess, err := h.sessions.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if sess == nil {
		return false, nil
	}
	if err := h.sessions.Deactivate(ctx, id); err != nil {
		return true, err
	}
	h.audit.LogEvent(ctx, audit.Event{
		Action:     audit.ActionSessionRevoked,
		UserID:     actorID,
		Resource:   "session",
		ResourceID: id,
		Details:    map[string]any{"sessionUserId": sess.UserID},
		Security:   sec,
		Success:    true,
	})
	return true, nil
}

func (h *Handler) revokeSession(w http.ResponseWriter, r *http.Request) {
	var actorID string
	if id, ok := authn.IdentityFrom(r.Context()); ok {
		actorID = id.ID
	}
	found, err := h.RevokeSession(r.Context(), chi.URLParam(r, "id"), actorID, reqctx.FromRequest(r))
	if err != nil {
		log.Error().Err(err).Msg("admin: revoke session")
		authn.WriteError(w, http.StatusInternalServerError, authn.MsgInternal)
		return
	}
	if !found {
		authn.WriteError(w, http.StatusNotFound, "session not found")
		return
	}
	authn.WriteJSON(w, http.StatusOK, map[string]any{"revoked": true})
}

func (h *Handler) listAudit(w http.ResponseWriter, r *http.Request) {
	if h.entries == nil {
		authn.WriteError(w, http.StatusNotImplemented, "audit listing is not configured")
		return
	}
	q := r.URL.Query()
	f := auditrepo.ListFilter{UserID: q.Get("userId"), Action: q.Get("action")}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			authn.WriteError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		f.Limit = n
	}
	list, err := h.entries.List(r.Context(), f)
	if err != nil {
		log.Error().Err(err).Msg("admin: list audit entries")
		authn.WriteError(w, http.StatusInternalServerError, authn.MsgInternal)
		return
	}
	if list == nil {
		list = []*auditdomain.Entry{}
	}
	authn.WriteJSON(w, http.StatusOK, map[string]any{"entries": list})
}
