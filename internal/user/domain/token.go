package domain

import "time"

// OneTimeToken is a persisted password-reset or email-verification token.
// Only the hash of the token value is stored.
type OneTimeToken struct {
	ID        string
	UserID    string
	Purpose   string
	TokenHash string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}
