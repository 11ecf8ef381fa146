package repository

import (
	"context"
	"database/sql"
	"errors"

	"enterprise-api/backend/internal/audit/domain"
	"enterprise-api/backend/internal/db"
)

const auditColumns = `id, user_id, action, resource, resource_id, ip_address, user_agent, metadata, created_at`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an audit log repository that uses the given db for persistence.
func NewPostgresRepository(conn *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// GetByID returns the audit log for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.AuditLog, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+auditColumns+` FROM audit_logs WHERE id = $1`, id)
	a, err := scanAuditLog(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

// ListByUser returns audit logs for the given user newest first, paginated by limit and offset.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.AuditLog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+auditColumns+` FROM audit_logs WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.AuditLog
	for rows.Next() {
		a, err := scanAuditLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Create persists the audit log. The audit log must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	var meta any
	if a.Metadata != "" {
		meta = a.Metadata
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_logs (`+auditColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, db.NullString(a.UserID), a.Action, a.Resource, db.NullString(a.ResourceID),
		a.IPAddress, db.NullString(a.UserAgent), meta, a.CreatedAt)
	return db.TranslateError(err)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAuditLog(s scanner) (*domain.AuditLog, error) {
	var a domain.AuditLog
	var userID, resourceID, ua, metadata sql.NullString
	if err := s.Scan(&a.ID, &userID, &a.Action, &a.Resource, &resourceID, &a.IPAddress, &ua, &metadata,
		&a.CreatedAt); err != nil {
		return nil, err
	}
	a.UserID = userID.String
	a.ResourceID = resourceID.String
	a.UserAgent = ua.String
	a.Metadata = metadata.String
	return &a, nil
}
