package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/goccy/go-json"

	"authguard/internal/audit/domain"
)

// PostgresRepository implements Repository on the audit_logs table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an audit repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Append inserts e. The entry must have ID set.
func (r *PostgresRepository) Append(ctx context.Context, e *domain.Entry) error {
	var details []byte
	if len(e.Details) > 0 {
		b, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("audit: encode details: %w", err)
		}
		details = b
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO audit_logs
		(id, action, user_id, resource, resource_id, details, ip_address, user_agent, success, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.ID, e.Action, nullString(e.UserID), nullString(e.Resource), nullString(e.ResourceID), details,
		e.IPAddress, e.UserAgent, e.Success, nullString(e.ErrorMessage), e.CreatedAt)
	return err
}

// List returns entries matching f, newest first.
func (r *PostgresRepository) List(ctx context.Context, f ListFilter) ([]*domain.Entry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, action, user_id, resource, resource_id, details,
		ip_address, user_agent, success, error_message, created_at
		FROM audit_logs
		WHERE ($1::text = '' OR user_id = $1) AND ($2::text = '' OR action = $2)
		ORDER BY created_at DESC
		LIMIT $3`, f.UserID, f.Action, f.limit())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Entry
	for rows.Next() {
		var (
			e                                    domain.Entry
			userID, resource, resourceID, errMsg sql.NullString
			details                              []byte
		)
		if err := rows.Scan(&e.ID, &e.Action, &userID, &resource, &resourceID, &details,
			&e.IPAddress, &e.UserAgent, &e.Success, &errMsg, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.UserID, e.Resource, e.ResourceID, e.ErrorMessage = userID.String, resource.String, resourceID.String, errMsg.String
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, fmt.Errorf("audit: decode details of %s: %w", e.ID, err)
			}
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
