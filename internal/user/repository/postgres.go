package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"authguard/internal/platform/rbac"
	"authguard/internal/user/domain"
)

const userColumns = `id, email, name, role, password_hash, is_active, email_verified,
	failed_login_attempts, locked_until, last_login, created_at, updated_at`

// PostgresRepository implements Repository and TokenRepository on database/sql.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the user for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetByEmail returns the user for email, or nil if not found.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

// Create inserts u. The user must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO users
		(id, email, name, role, password_hash, is_active, email_verified, failed_login_attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8, $9)`,
		u.ID, u.Email, u.Name, string(u.Role), u.PasswordHash, u.IsActive, u.EmailVerified, u.CreatedAt, u.UpdatedAt)
	return err
}

// UpdateLastLogin sets last_login to at.
func (r *PostgresRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET last_login = $2 WHERE id = $1`, id, at)
	return err
}

// UpdateLoginState stores the failed-login counter and lock expiry.
func (r *PostgresRepository) UpdateLoginState(ctx context.Context, id string, failedAttempts int, lockedUntil *time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET failed_login_attempts = $2, locked_until = $3, updated_at = now() WHERE id = $1`,
		id, failedAttempts, nullTime(lockedUntil))
	return err
}

// IncrementFailedLogins adds one failed attempt in a single statement and locks the
// account until now+lockFor once the count reaches max. An expired lock restarts the count.
func (r *PostgresRepository) IncrementFailedLogins(ctx context.Context, id string, now time.Time, max int, lockFor time.Duration) (int, *time.Time, error) {
	row := r.db.QueryRowContext(ctx, `UPDATE users SET
		failed_login_attempts = CASE WHEN locked_until <= $2 THEN 1 ELSE failed_login_attempts + 1 END,
		locked_until = CASE
			WHEN (CASE WHEN locked_until <= $2 THEN 1 ELSE failed_login_attempts + 1 END) >= $3 THEN $4
			WHEN locked_until > $2 THEN locked_until
			ELSE NULL END,
		updated_at = $2
		WHERE id = $1
		RETURNING failed_login_attempts, locked_until`, id, now, max, now.Add(lockFor))
	var (
		attempts    int
		lockedUntil sql.NullTime
	)
	if err := row.Scan(&attempts, &lockedUntil); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil, nil
		}
		return 0, nil, err
	}
	if !lockedUntil.Valid {
		return attempts, nil, nil
	}
	t := lockedUntil.Time
	return attempts, &t, nil
}

// UpdatePasswordHash replaces the stored password hash.
func (r *PostgresRepository) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`, id, hash)
	return err
}

// SetEmailVerified marks the user's email as verified.
func (r *PostgresRepository) SetEmailVerified(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET email_verified = TRUE, updated_at = now() WHERE id = $1`, id)
	return err
}

// CreateToken inserts a one-time token.
func (r *PostgresRepository) CreateToken(ctx context.Context, t *domain.OneTimeToken) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO user_tokens (id, user_id, purpose, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		t.ID, t.UserID, t.Purpose, t.TokenHash, t.ExpiresAt, t.CreatedAt)
	return err
}

// ConsumeToken atomically marks a matching token as used and returns it.
func (r *PostgresRepository) ConsumeToken(ctx context.Context, purpose, tokenHash string, now time.Time) (*domain.OneTimeToken, error) {
	row := r.db.QueryRowContext(ctx, `UPDATE user_tokens SET used_at = $3
		WHERE token_hash = $1 AND purpose = $2 AND used_at IS NULL AND expires_at > $3
		RETURNING id, user_id, expires_at, created_at`, tokenHash, purpose, now)
	t := &domain.OneTimeToken{Purpose: purpose, TokenHash: tokenHash}
	if err := row.Scan(&t.ID, &t.UserID, &t.ExpiresAt, &t.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	used := now
	t.UsedAt = &used
	return t, nil
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var (
		u           domain.User
		role        string
		lockedUntil sql.NullTime
		lastLogin   sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Email, &u.Name, &role, &u.PasswordHash, &u.IsActive, &u.EmailVerified,
		&u.FailedLoginAttempts, &lockedUntil, &lastLogin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	u.Role = rbac.Parse(role)
	if lockedUntil.Valid {
		t := lockedUntil.Time
		u.LockedUntil = &t
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLogin = &t
	}
	return &u, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
