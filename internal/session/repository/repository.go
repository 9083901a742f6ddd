package repository

import (
	"context"
	"time"

	"authguard/internal/session/domain"
)

// Repository defines persistence for sessions. Getters return (nil, nil) when no row matches.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	// GetByToken looks a session up by the raw signed token; implementations hash it.
	GetByToken(ctx context.Context, token string) (*domain.Session, error)
	GetByRefreshTokenHash(ctx context.Context, hash string) (*domain.Session, error)
	ListActiveByUser(ctx context.Context, userID string) ([]*domain.Session, error)
	Create(ctx context.Context, s *domain.Session) error
	UpdateLastUsed(ctx context.Context, id string, at time.Time) error
	// RotateToken replaces the session token and refresh token hashes and expiries.
	RotateToken(ctx context.Context, id, tokenHash string, expiresAt time.Time, refreshHash string, refreshExpiresAt time.Time) error
	Deactivate(ctx context.Context, id string) error
	DeactivateAllByUser(ctx context.Context, userID string) error
}
