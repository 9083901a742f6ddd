package repository

import (
	"context"

	"authguard/internal/audit/domain"
)

// ListFilter narrows List. Empty fields match everything; Limit <= 0 uses DefaultListLimit.
type ListFilter struct {
	UserID string
	Action string
	Limit  int
}

// DefaultListLimit and MaxListLimit bound List page sizes.
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// Repository defines persistence for audit entries. Entries are append-only.
type Repository interface {
	Append(ctx context.Context, e *domain.Entry) error
	List(ctx context.Context, f ListFilter) ([]*domain.Entry, error)
}

func (f ListFilter) limit() int {
	switch {
	case f.Limit <= 0:
		return DefaultListLimit
	case f.Limit > MaxListLimit:
		return MaxListLimit
	default:
		return f.Limit
	}
}
