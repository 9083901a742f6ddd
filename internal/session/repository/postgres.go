package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"authguard/internal/security"
	"authguard/internal/session/domain"
)

const sessionColumns = `id, user_id, token_hash, is_active, expires_at, last_used, ip_address, user_agent,
	refresh_token_hash, refresh_expires_at, created_at`

// PostgresRepository implements Repository on database/sql.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the session for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	return scanSession(r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id))
}

// GetByToken returns the session whose token hash matches token, or nil.
func (r *PostgresRepository) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	return scanSession(r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE token_hash = $1`, security.HashOpaqueToken(token)))
}

// GetByRefreshTokenHash returns the session holding the refresh token hash, or nil.
func (r *PostgresRepository) GetByRefreshTokenHash(ctx context.Context, hash string) (*domain.Session, error) {
	return scanSession(r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE refresh_token_hash = $1`, hash))
}

// ListActiveByUser returns the user's active sessions, newest first.
func (r *PostgresRepository) ListActiveByUser(ctx context.Context, userID string) ([]*domain.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE user_id = $1 AND is_active ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Create inserts s. The session must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO sessions
		(id, user_id, token_hash, is_active, expires_at, ip_address, user_agent, refresh_token_hash, refresh_expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		s.ID, s.UserID, s.TokenHash, s.IsActive, s.ExpiresAt, s.IPAddress, s.UserAgent,
		nullString(s.RefreshTokenHash), nullTime(s.RefreshExpiresAt), s.CreatedAt)
	return err
}

// UpdateLastUsed sets last_used to at.
func (r *PostgresRepository) UpdateLastUsed(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE sessions SET last_used = $2 WHERE id = $1`, id, at)
	return err
}

// RotateToken replaces the token and refresh token of an active session.
func (r *PostgresRepository) RotateToken(ctx context.Context, id, tokenHash string, expiresAt time.Time, refreshHash string, refreshExpiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE sessions
		SET token_hash = $2, expires_at = $3, refresh_token_hash = $4, refresh_expires_at = $5
		WHERE id = $1 AND is_active`,
		id, tokenHash, expiresAt, refreshHash, refreshExpiresAt)
	return err
}

// Deactivate marks the session inactive.
func (r *PostgresRepository) Deactivate(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE sessions SET is_active = FALSE WHERE id = $1`, id)
	return err
}

// DeactivateAllByUser marks every session of the user inactive.
func (r *PostgresRepository) DeactivateAllByUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE sessions SET is_active = FALSE WHERE user_id = $1 AND is_active`, userID)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*domain.Session, error) {
	var (
		s                domain.Session
		lastUsed         sql.NullTime
		refreshHash      sql.NullString
		refreshExpiresAt sql.NullTime
	)
	err := row.Scan(&s.ID, &s.UserID, &s.TokenHash, &s.IsActive, &s.ExpiresAt, &lastUsed, &s.IPAddress,
		&s.UserAgent, &refreshHash, &refreshExpiresAt, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if lastUsed.Valid {
		t := lastUsed.Time
		s.LastUsed = &t
	}
	s.RefreshTokenHash = refreshHash.String
	if refreshExpiresAt.Valid {
		t := refreshExpiresAt.Time
		s.RefreshExpiresAt = &t
	}
	return &s, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
