package domain

import "time"

// Session is the server-side record backing a signed session token. Only the
// hash of the token is stored. Sessions are deactivated, never deleted.
type Session struct {
	ID               string
	UserID           string
	TokenHash        string
	IsActive         bool
	ExpiresAt        time.Time
	LastUsed         *time.Time
	IPAddress        string
	UserAgent        string
	RefreshTokenHash string // SHA-256 hash of the current refresh token; empty if none
	RefreshExpiresAt *time.Time
	CreatedAt        time.Time
}

// Usable reports whether the session may authenticate a request at now.
func (s *Session) Usable(now time.Time) bool {
	return s.IsActive && s.ExpiresAt.After(now)
}
