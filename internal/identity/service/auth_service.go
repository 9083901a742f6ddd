package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"authguard/internal/audit"
	"authguard/internal/platform/rbac"
	"authguard/internal/reqctx"
	"authguard/internal/security"
	sessiondomain "authguard/internal/session/domain"
	userdomain "authguard/internal/user/domain"
)

// Sentinel errors for the auth service; handlers map them to HTTP statuses.
var (
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrAccountLocked          = errors.New("account locked")
	ErrAccountDisabled        = errors.New("account disabled")
	ErrInvalidRefreshToken    = errors.New("invalid or expired refresh token")
	ErrInvalidToken           = errors.New("invalid or expired token")
)

// Lockout applies after MaxFailedLogins consecutive bad passwords.
const (
	MaxFailedLogins = 5
	LockoutDuration = 30 * time.Minute
)

// AuthResult is the session issued by Register, Login and Refresh.
type AuthResult struct {
	User             *userdomain.User
	SessionID        string
	Token            string
	ExpiresAt        time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	// VerificationToken is set by Register only.
	VerificationToken string
}

// UserRepo is the minimal user repository needed by the auth service.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
	Create(ctx context.Context, u *userdomain.User) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	UpdateLoginState(ctx context.Context, id string, failedAttempts int, lockedUntil *time.Time) error
	IncrementFailedLogins(ctx context.Context, id string, now time.Time, max int, lockFor time.Duration) (int, *time.Time, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	SetEmailVerified(ctx context.Context, id string) error
}

// TokenRepo stores one-time reset and verification tokens.
type TokenRepo interface {
	CreateToken(ctx context.Context, t *userdomain.OneTimeToken) error
	ConsumeToken(ctx context.Context, purpose, tokenHash string, now time.Time) (*userdomain.OneTimeToken, error)
}

// SessionRepo is the minimal session repository needed by the auth service.
type SessionRepo interface {
	GetByID(ctx context.Context, id string) (*sessiondomain.Session, error)
	GetByToken(ctx context.Context, token string) (*sessiondomain.Session, error)
	GetByRefreshTokenHash(ctx context.Context, hash string) (*sessiondomain.Session, error)
	Create(ctx context.Context, s *sessiondomain.Session) error
	RotateToken(ctx context.Context, id, tokenHash string, expiresAt time.Time, refreshHash string, refreshExpiresAt time.Time) error
	Deactivate(ctx context.Context, id string) error
	DeactivateAllByUser(ctx context.Context, userID string) error
	ListActiveByUser(ctx context.Context, userID string) ([]*sessiondomain.Session, error)
}

// AuthService implements registration, password login, session refresh and logout,
// and the password and email token flows.
type AuthService struct {
	users      UserRepo
	oneTime    TokenRepo
	sessions   SessionRepo
	hasher     *security.Hasher
	tokens     *security.TokenProvider
	audit      audit.AuditLogger
	sessionTTL time.Duration
	now        func() time.Time
}

// NewAuthService returns an AuthService with the given dependencies. A nil auditLogger disables auditing.
func NewAuthService(
	users UserRepo,
	oneTime TokenRepo,
	sessions SessionRepo,
	hasher *security.Hasher,
	tokens *security.TokenProvider,
	auditLogger audit.AuditLogger,
	sessionTTL time.Duration,
) *AuthService {
	if auditLogger == nil {
		auditLogger = audit.NewLogger(nil)
	}
	return &AuthService{
		users:      users,
		oneTime:    oneTime,
		sessions:   sessions,
		hasher:     hasher,
		tokens:     tokens,
		audit:      auditLogger,
		sessionTTL: sessionTTL,
		now:        time.Now,
	}
}

// WithClock returns a copy of the service that reads time from now.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	cp := *s
	cp.now = now
	return &cp
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an active regular user, opens a session and issues an email
// verification token. All input violations are reported together.
func (s *AuthService) Register(ctx context.Context, in RegisterInput, sec reqctx.Security) (*AuthResult, error) {
	in.Email = normalizeEmail(in.Email)
	in.Name = reqctx.Sanitize(in.Name)
	if err := checkInput(in, &in.Password); err != nil {
		return nil, err
	}
	existing, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		s.audit.LogEvent(ctx, audit.Event{Action: audit.ActionRegister, Security: sec, Error: ErrEmailAlreadyRegistered.Error(),
			Details: map[string]any{"email": in.Email}})
		return nil, ErrEmailAlreadyRegistered
	}
	hashed, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	user := &userdomain.User{
		ID:           uuid.New().String(),
		Email:        in.Email,
		Name:         in.Name,
		Role:         rbac.RoleRegular,
		PasswordHash: hashed,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	res, err := s.openSession(ctx, user, sec)
	if err != nil {
		return nil, err
	}
	verification, err := s.issueOneTime(ctx, user.ID, security.PurposeEmailVerification)
	if err != nil {
		return nil, err
	}
	res.VerificationToken = verification
	s.audit.LogEvent(ctx, audit.Event{Action: audit.ActionRegister, UserID: user.ID, Resource: "user", ResourceID: user.ID,
		Security: sec, Success: true})
	return res, nil
}

// Login checks email and password and opens a session. Unknown emails and wrong
// passwords both return ErrInvalidCredentials. MaxFailedLogins consecutive failures
// lock the account for LockoutDuration; a locked account is refused before the
// password is checked.
func (s *AuthService) Login(ctx context.Context, in LoginInput, sec reqctx.Security) (*AuthResult, error) {
	in.Email = normalizeEmail(in.Email)
	if in.Email == "" || in.Password == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		s.failedLogin(ctx, "", in.Email, ErrInvalidCredentials, sec)
		return nil, ErrInvalidCredentials
	}
	now := s.now().UTC()
	if !user.IsActive {
		s.failedLogin(ctx, user.ID, in.Email, ErrAccountDisabled, sec)
		return nil, ErrAccountDisabled
	}
	if user.Locked(now) {
		s.failedLogin(ctx, user.ID, in.Email, ErrAccountLocked, sec)
		return nil, ErrAccountLocked
	}
	if !s.hasher.Verify(in.Password, user.PasswordHash) {
		if err := s.recordFailure(ctx, user, now, sec); err != nil {
			return nil, err
		}
		s.failedLogin(ctx, user.ID, in.Email, ErrInvalidCredentials, sec)
		return nil, ErrInvalidCredentials
	}
	if user.FailedLoginAttempts != 0 || user.LockedUntil != nil {
		if err := s.users.UpdateLoginState(ctx, user.ID, 0, nil); err != nil {
			return nil, err
		}
		user.FailedLoginAttempts, user.LockedUntil = 0, nil
	}
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, err
	}
	user.LastLogin = &now
	res, err := s.openSession(ctx, user, sec)
	if err != nil {
		return nil, err
	}
	s.audit.LogEvent(ctx, audit.Event{Action: audit.ActionLogin, UserID: user.ID, Resource: "session", ResourceID: res.SessionID,
		Security: sec, Success: true})
	return res, nil
}

// recordFailure counts a bad password in the store and audits the lock when the
// count reaches MaxFailedLogins. A lock that has already expired starts a fresh count.
func (s *AuthService) recordFailure(ctx context.Context, user *userdomain.User, now time.Time, sec reqctx.Security) error {
	attempts, until, err := s.users.IncrementFailedLogins(ctx, user.ID, now, MaxFailedLogins, LockoutDuration)
	if err != nil {
		return err
	}
	if until == nil || attempts < MaxFailedLogins {
		return nil
	}
	s.audit.LogEvent(ctx, audit.Event{Action: audit.ActionAccountLocked, UserID: user.ID, Resource: "user", ResourceID: user.ID,
		Security: sec, Success: true, Details: map[string]any{"failedAttempts": attempts, "lockedUntil": *until}})
	return nil
}

func (s *AuthService) failedLogin(ctx context.Context, userID, email string, reason error, sec reqctx.Security) {
	s.audit.LogEvent(ctx, audit.Event{Action: audit.ActionFailedLogin, UserID: userID, Security: sec,
		Error: reason.Error(), Details: map[string]any{"email": email}})
}

// openSession issues a signed session token and a refresh token and persists the
// session with both stored as hashes.
func (s *AuthService) openSession(ctx context.Context, user *userdomain.User, sec reqctx.Security) (*AuthResult, error) {
	now := s.now().UTC()
	sessionID := uuid.New().String()
	token, err := s.tokens.Issue(security.Claims{
		SubjectID: user.ID,
		Email:     user.Email,
		Role:      string(user.Role),
		SessionID: sessionID,
	}, s.sessionTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := security.NewOpaqueToken(security.PurposeRefresh, now)
	if err != nil {
		return nil, err
	}
	expiresAt := now.Add(s.sessionTTL)
	sess := &sessiondomain.Session{
		ID:               sessionID,
		UserID:           user.ID,
		TokenHash:        security.HashOpaqueToken(token),
		IsActive:         true,
		ExpiresAt:        expiresAt,
		IPAddress:        sec.IP,
		UserAgent:        sec.UserAgent,
		RefreshTokenHash: security.HashOpaqueToken(refresh.Value),
		RefreshExpiresAt: &refresh.ExpiresAt,
		CreatedAt:        now,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, err
	}
	return &AuthResult{
		User:             user,
		SessionID:        sessionID,
		Token:            token,
		ExpiresAt:        expiresAt,
		RefreshToken:     refresh.Value,
		RefreshExpiresAt: refresh.ExpiresAt,
	}, nil
}

// Logout deactivates the session holding token. Unknown tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, token string, sec reqctx.Security) error {
	if token == "" {
		return nil
	}
	sess, err := s.sessions.GetByToken(ctx, token)
	if err != nil {
		return err
	}
	if sess == nil || !sess.IsActive {
		return nil
	}
	if err := s.sessions.Deactivate(ctx, sess.ID); err != nil {
		return err
	}
	s.audit.LogEvent(ctx, audit.Event{Action: audit.ActionLogout, UserID: sess.UserID, Resource: "session", ResourceID: sess.ID,
		Security: sec, Success: true})
	return nil
}

// Refresh exchanges a refresh token for a new session token and a new refresh token.
// The presented refresh token stops working.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	if refreshToken == "" {
		return nil, ErrInvalidRefreshToken
	}
	sess, err := s.sessions.GetByRefreshTokenHash(ctx, security.HashOpaqueToken(refreshToken))
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if sess == nil || !sess.IsActive || sess.RefreshExpiresAt == nil || !sess.RefreshExpiresAt.After(now) {
		return nil, ErrInvalidRefreshToken
	}
	user, err := s.users.GetByID(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive {
		return nil, ErrInvalidRefreshToken
	}
	token, err := s.tokens.Issue(security.Claims{
		SubjectID: user.ID,
		Email:     user.Email,
		Role:      string(user.Role),
		SessionID: sess.ID,
	}, s.sessionTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := security.NewOpaqueToken(security.PurposeRefresh, now)
	if err != nil {
		return nil, err
	}
	expiresAt := now.Add(s.sessionTTL)
	if err := s.sessions.RotateToken(ctx, sess.ID, security.HashOpaqueToken(token), expiresAt,
		security.HashOpaqueToken(refresh.Value), refresh.ExpiresAt); err != nil {
		return nil, err
	}
	return &AuthResult{
		User:             user,
		SessionID:        sess.ID,
		Token:            token,
		ExpiresAt:        expiresAt,
		RefreshToken:     refresh.Value,
		RefreshExpiresAt: refresh.ExpiresAt,
	}, nil
}
