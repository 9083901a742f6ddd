// Package memstore holds in-process implementations of the user, session and
// audit repositories. The server uses them when no DATABASE_URL is configured;
// data is lost on restart.
package memstore

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	auditdomain "authguard/internal/audit/domain"
	auditrepo "authguard/internal/audit/repository"
	"authguard/internal/security"
	sessiondomain "authguard/internal/session/domain"
	userdomain "authguard/internal/user/domain"
)

// ErrDuplicateEmail is returned by Users.Create for an email already stored.
var ErrDuplicateEmail = errors.New("memstore: duplicate email")

// Users implements the user Repository and TokenRepository.
type Users struct {
	mu     sync.Mutex
	byID   map[string]*userdomain.User
	tokens map[string]*userdomain.OneTimeToken // by token hash
}

// NewUsers returns an empty user store.
func NewUsers() *Users {
	return &Users{byID: make(map[string]*userdomain.User), tokens: make(map[string]*userdomain.OneTimeToken)}
}

func copyUser(u *userdomain.User) *userdomain.User {
	c := *u
	return &c
}

// GetByID returns a copy of the user, or nil.
func (s *Users) GetByID(_ context.Context, id string) (*userdomain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.byID[id]; ok {
		return copyUser(u), nil
	}
	return nil, nil
}

// GetByEmail returns a copy of the user with email, or nil.
func (s *Users) GetByEmail(_ context.Context, email string) (*userdomain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.byID {
		if u.Email == email {
			return copyUser(u), nil
		}
	}
	return nil, nil
}

// Create stores a copy of u.
func (s *Users) Create(_ context.Context, u *userdomain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.byID {
		if existing.Email == u.Email {
			return ErrDuplicateEmail
		}
	}
	s.byID[u.ID] = copyUser(u)
	return nil
}

func (s *Users) update(id string, fn func(u *userdomain.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.byID[id]; ok {
		fn(u)
		u.UpdatedAt = time.Now().UTC()
	}
	return nil
}

// UpdateLastLogin sets LastLogin.
func (s *Users) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	return s.update(id, func(u *userdomain.User) { u.LastLogin = &at })
}

// UpdateLoginState sets the failed-attempt counter and lock.
func (s *Users) UpdateLoginState(_ context.Context, id string, failedAttempts int, lockedUntil *time.Time) error {
	return s.update(id, func(u *userdomain.User) {
		u.FailedLoginAttempts = failedAttempts
		u.LockedUntil = lockedUntil
	})
}

// IncrementFailedLogins counts a failed login under the store lock.
func (s *Users) IncrementFailedLogins(_ context.Context, id string, now time.Time, max int, lockFor time.Duration) (int, *time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return 0, nil, nil
	}
	if u.LockedUntil != nil && !u.LockedUntil.After(now) {
		u.FailedLoginAttempts, u.LockedUntil = 0, nil
	}
	u.FailedLoginAttempts++
	if u.FailedLoginAttempts >= max {
		until := now.Add(lockFor)
		u.LockedUntil = &until
	}
	u.UpdatedAt = now
	if u.LockedUntil == nil {
		return u.FailedLoginAttempts, nil, nil
	}
	until := *u.LockedUntil
	return u.FailedLoginAttempts, &until, nil
}

// UpdatePasswordHash replaces the password hash.
func (s *Users) UpdatePasswordHash(_ context.Context, id, hash string) error {
	return s.update(id, func(u *userdomain.User) { u.PasswordHash = hash })
}

// SetEmailVerified marks the email verified.
func (s *Users) SetEmailVerified(_ context.Context, id string) error {
	return s.update(id, func(u *userdomain.User) { u.EmailVerified = true })
}

// SetActive toggles the account's active flag.
func (s *Users) SetActive(id string, active bool) {
	_ = s.update(id, func(u *userdomain.User) { u.IsActive = active })
}

// CreateToken stores t by its hash.
func (s *Users) CreateToken(_ context.Context, t *userdomain.OneTimeToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *t
	s.tokens[t.TokenHash] = &c
	return nil
}

// ConsumeToken marks a matching unused, unexpired token used and returns it.
func (s *Users) ConsumeToken(_ context.Context, purpose, tokenHash string, now time.Time) (*userdomain.OneTimeToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[tokenHash]
	if !ok || t.Purpose != purpose || t.UsedAt != nil || !t.ExpiresAt.After(now) {
		return nil, nil
	}
	used := now
	t.UsedAt = &used
	c := *t
	return &c, nil
}

// Sessions implements the session Repository.
type Sessions struct {
	mu   sync.Mutex
	byID map[string]*sessiondomain.Session
}

// NewSessions returns an empty session store.
func NewSessions() *Sessions {
	return &Sessions{byID: make(map[string]*sessiondomain.Session)}
}

func copySession(s *sessiondomain.Session) *sessiondomain.Session {
	c := *s
	return &c
}

func (s *Sessions) find(match func(*sessiondomain.Session) bool) *sessiondomain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.byID {
		if match(sess) {
			return copySession(sess)
		}
	}
	return nil
}

// GetByID returns a copy of the session, or nil.
func (s *Sessions) GetByID(_ context.Context, id string) (*sessiondomain.Session, error) {
	return s.find(func(x *sessiondomain.Session) bool { return x.ID == id }), nil
}

// GetByToken returns the session whose token hash matches token, or nil.
func (s *Sessions) GetByToken(_ context.Context, token string) (*sessiondomain.Session, error) {
	h := security.HashOpaqueToken(token)
	return s.find(func(x *sessiondomain.Session) bool { return x.TokenHash == h }), nil
}

// GetByRefreshTokenHash returns the session holding the refresh hash, or nil.
func (s *Sessions) GetByRefreshTokenHash(_ context.Context, hash string) (*sessiondomain.Session, error) {
	if hash == "" {
		return nil, nil
	}
	return s.find(func(x *sessiondomain.Session) bool { return x.RefreshTokenHash == hash }), nil
}

// ListActiveByUser returns the user's active sessions, newest first.
func (s *Sessions) ListActiveByUser(_ context.Context, userID string) ([]*sessiondomain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*sessiondomain.Session
	for _, sess := range s.byID {
		if sess.UserID == userID && sess.IsActive {
			out = append(out, copySession(sess))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Create stores a copy of sess.
func (s *Sessions) Create(_ context.Context, sess *sessiondomain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[sess.ID] = copySession(sess)
	return nil
}

func (s *Sessions) update(id string, fn func(*sessiondomain.Session)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.byID[id]; ok {
		fn(sess)
	}
	return nil
}

// UpdateLastUsed sets LastUsed.
func (s *Sessions) UpdateLastUsed(_ context.Context, id string, at time.Time) error {
	return s.update(id, func(x *sessiondomain.Session) { x.LastUsed = &at })
}

// RotateToken replaces the token and refresh token of an active session.
func (s *Sessions) RotateToken(_ context.Context, id, tokenHash string, expiresAt time.Time, refreshHash string, refreshExpiresAt time.Time) error {
	return s.update(id, func(x *sessiondomain.Session) {
		if !x.IsActive {
			return
		}
		x.TokenHash, x.ExpiresAt = tokenHash, expiresAt
		x.RefreshTokenHash, x.RefreshExpiresAt = refreshHash, &refreshExpiresAt
	})
}

// Deactivate marks the session inactive.
func (s *Sessions) Deactivate(_ context.Context, id string) error {
	return s.update(id, func(x *sessiondomain.Session) { x.IsActive = false })
}

// DeactivateAllByUser marks every session of the user inactive.
func (s *Sessions) DeactivateAllByUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.byID {
		if sess.UserID == userID {
			sess.IsActive = false
		}
	}
	return nil
}

// AuditLog implements the audit Repository.
type AuditLog struct {
	mu      sync.Mutex
	entries []*auditdomain.Entry
}

// NewAuditLog returns an empty audit log.
func NewAuditLog() *AuditLog {
	return &AuditLog{}
}

// Append stores e.
func (a *AuditLog) Append(_ context.Context, e *auditdomain.Entry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
	return nil
}

// List returns entries matching f, newest first.
func (a *AuditLog) List(_ context.Context, f auditrepo.ListFilter) ([]*auditdomain.Entry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	limit := f.Limit
	if limit <= 0 {
		limit = auditrepo.DefaultListLimit
	}
	var out []*auditdomain.Entry
	for i := len(a.entries) - 1; i >= 0 && len(out) < limit; i-- {
		e := a.entries[i]
		if (f.UserID == "" || e.UserID == f.UserID) && (f.Action == "" || e.Action == f.Action) {
			out = append(out, e)
		}
	}
	return out, nil
}
