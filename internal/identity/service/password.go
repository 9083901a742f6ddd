package service

import (
	"context"

	"github.com/google/uuid"

	"authguard/internal/audit"
	"authguard/internal/reqctx"
	"authguard/internal/security"
	userdomain "authguard/internal/user/domain"
)

// issueOneTime stores the hash of a new token for purpose and returns the raw value.
func (s *AuthService) issueOneTime(ctx context.Context, userID string, purpose security.TokenPurpose) (string, error) {
	now := s.now().UTC()
	tok, err := security.NewOpaqueToken(purpose, now)
	if err != nil {
		return "", err
	}
	err = s.oneTime.CreateToken(ctx, &userdomain.OneTimeToken{
		ID:        uuid.New().String(),
		UserID:    userID,
		Purpose:   string(purpose),
		TokenHash: security.HashOpaqueToken(tok.Value),
		ExpiresAt: tok.ExpiresAt,
		CreatedAt: now,
	})
	if err != nil {
		return "", err
	}
	return tok.Value, nil
}

// RequestPasswordReset issues a reset token for an active account. The caller
// always reports success; the returned token is empty when no account matched.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string, sec reqctx.Security) (string, error) {
	email = normalizeEmail(email)
	if email == "" {
		return "", nil
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if user == nil || !user.IsActive {
		return "", nil
	}
	token, err := s.issueOneTime(ctx, user.ID, security.PurposePasswordReset)
	if err != nil {
		return "", err
	}
	s.audit.LogEvent(ctx, audit.Event{Action: audit.ActionPasswordResetRequest, UserID: user.ID, Resource: "user", ResourceID: user.ID,
		Security: sec, Success: true})
	return token, nil
}

// CompletePasswordReset sets a new password using a reset token. The token is
// consumed only when the new password passes the strength rules. Every session
// of the user is deactivated and any lockout is cleared.
func (s *AuthService) CompletePasswordReset(ctx context.Context, in ResetInput, sec reqctx.Security) error {
	if err := checkInput(in, &in.NewPassword); err != nil {
		return err
	}
	tok, err := s.oneTime.ConsumeToken(ctx, string(security.PurposePasswordReset), security.HashOpaqueToken(in.Token), s.now().UTC())
	if err != nil {
		return err
	}
	if tok == nil {
		s.audit.LogEvent(ctx, audit.Event{Action: audit.ActionPasswordResetComplete, Security: sec, Error: ErrInvalidToken.Error()})
		return ErrInvalidToken
	}
	hashed, err := s.hasher.Hash(in.NewPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePasswordHash(ctx, tok.UserID, hashed); err != nil {
		return err
	}
	if err := s.users.UpdateLoginState(ctx, tok.UserID, 0, nil); err != nil {
		return err
	}
	if err := s.sessions.DeactivateAllByUser(ctx, tok.UserID); err != nil {
		return err
	}
	s.audit.LogEvent(ctx, audit.Event{Action: audit.ActionPasswordResetComplete, UserID: tok.UserID, Resource: "user", ResourceID: tok.UserID,
		Security: sec, Success: true})
	return nil
}

// VerifyEmail consumes an email verification token and marks the address verified.
func (s *AuthService) VerifyEmail(ctx context.Context, token string, sec reqctx.Security) error {
	if token == "" {
		return ErrInvalidToken
	}
	tok, err := s.oneTime.ConsumeToken(ctx, string(security.PurposeEmailVerification), security.HashOpaqueToken(token), s.now().UTC())
	if err != nil {
		return err
	}
	if tok == nil {
		return ErrInvalidToken
	}
	if err := s.users.SetEmailVerified(ctx, tok.UserID); err != nil {
		return err
	}
	s.audit.LogEvent(ctx, audit.Event{Action: audit.ActionEmailVerification, UserID: tok.UserID, Resource: "user", ResourceID: tok.UserID,
		Security: sec, Success: true})
	return nil
}

// ChangePassword replaces the password of userID after checking the current one.
func (s *AuthService) ChangePassword(ctx context.Context, userID string, in ChangePasswordInput, sec reqctx.Security) error {
	if err := checkInput(in, &in.NewPassword); err != nil {
		return err
	}
	if in.NewPassword == in.CurrentPassword {
		return &ValidationError{Violations: []string{"new password must differ from the current password"}}
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil || !s.hasher.Verify(in.CurrentPassword, user.PasswordHash) {
		s.audit.LogEvent(ctx, audit.Event{Action: audit.ActionPasswordChange, UserID: userID, Security: sec,
			Error: ErrInvalidCredentials.Error()})
		return ErrInvalidCredentials
	}
	hashed, err := s.hasher.Hash(in.NewPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePasswordHash(ctx, user.ID, hashed); err != nil {
		return err
	}
	s.audit.LogEvent(ctx, audit.Event{Action: audit.ActionPasswordChange, UserID: user.ID, Resource: "user", ResourceID: user.ID,
		Security: sec, Success: true})
	return nil
}
