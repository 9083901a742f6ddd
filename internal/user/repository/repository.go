package repository

import (
	"context"
	"time"

	"authguard/internal/user/domain"
)

// Repository defines persistence for users. Getters return (nil, nil) when no row matches.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	// UpdateLoginState stores the failed-attempt counter and lock expiry (nil clears the lock).
	UpdateLoginState(ctx context.Context, id string, failedAttempts int, lockedUntil *time.Time) error
	// IncrementFailedLogins atomically counts a failed login and returns the new count
	// and lock expiry; the lock is set once the count reaches max.
	IncrementFailedLogins(ctx context.Context, id string, now time.Time, max int, lockFor time.Duration) (int, *time.Time, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	SetEmailVerified(ctx context.Context, id string) error
}

// TokenRepository persists one-time tokens.
type TokenRepository interface {
	CreateToken(ctx context.Context, t *domain.OneTimeToken) error
	// ConsumeToken marks the unused, unexpired token with tokenHash and purpose as used
	// at now and returns it; (nil, nil) when no such token exists.
	ConsumeToken(ctx context.Context, purpose, tokenHash string, now time.Time) (*domain.OneTimeToken, error)
}
