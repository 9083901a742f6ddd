package service

import (
	"context"
	"errors"

	"authguard/internal/audit"
	"authguard/internal/platform/rbac"
	"authguard/internal/reqctx"
	sessiondomain "authguard/internal/session/domain"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrNotOwner        = errors.New("session belongs to another user")
)

// Caller is the authenticated principal acting on an owned resource.
type Caller struct {
	ID   string
	Role rbac.Role
}

// ListSessions returns the active sessions of ownerID. Callers other than the
// owner need the admin role.
func (s *AuthService) ListSessions(ctx context.Context, caller Caller, ownerID string) ([]*sessiondomain.Session, error) {
	if ownerID == "" {
		ownerID = caller.ID
	}
	if !rbac.CanAccessOwned(caller.Role, caller.ID, ownerID) {
		return nil, ErrNotOwner
	}
	return s.sessions.ListActiveByUser(ctx, ownerID)
}

// RevokeSession deactivates sessionID if the caller owns it or is an admin.
// Revoking an inactive session succeeds without a new audit entry.
func (s *AuthService) RevokeSession(ctx context.Context, caller Caller, sessionID string, sec reqctx.Security) error {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		return ErrSessionNotFound
	}
	if !rbac.CanAccessOwned(caller.Role, caller.ID, sess.UserID) {
		s.audit.LogEvent(ctx, audit.Event{Action: audit.ActionSessionRevoked, UserID: caller.ID, Resource: "session",
			ResourceID: sessionID, Security: sec, Error: ErrNotOwner.Error()})
		return ErrNotOwner
	}
	if !sess.IsActive {
		return nil
	}
	if err := s.sessions.Deactivate(ctx, sessionID); err != nil {
		return err
	}
	s.audit.LogEvent(ctx, audit.Event{Action: audit.ActionSessionRevoked, UserID: caller.ID, Resource: "session",
		ResourceID: sessionID, Security: sec, Success: true, Details: map[string]any{"sessionUserId": sess.UserID}})
	return nil
}
