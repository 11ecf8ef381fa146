package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"enterprise-api/backend/internal/db"
	"enterprise-api/backend/internal/notification/domain"
)

const notificationColumns = `id, user_id, type, channel, subject, message, status, attempts, last_error, sent_at,
	created_at, updated_at`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a notification repository that uses the given db for persistence.
func NewPostgresRepository(conn *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// Create inserts the notification. The notification must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, n *domain.Notification) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO notifications (`+notificationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		n.ID, db.NullString(n.UserID), string(n.Type), n.Channel, db.NullString(n.Subject), n.Message,
		string(n.Status), n.Attempts, db.NullString(n.LastError), db.NullTime(n.SentAt), n.CreatedAt, n.UpdatedAt)
	return db.TranslateError(err)
}

// GetByID returns the notification for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id)
	n, err := scanNotification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return n, err
}

// List returns notifications newest first, optionally for one user.
func (r *PostgresRepository) List(ctx context.Context, userID string) ([]*domain.Notification, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications
		WHERE ($1 = '' OR user_id::text = $1) ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	return scanNotifications(rows)
}

// ListStalePending returns pending notifications not updated since before, oldest first.
func (r *PostgresRepository) ListStalePending(ctx context.Context, before time.Time, limit int) ([]*domain.Notification, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications
		WHERE status = $1 AND updated_at < $2 ORDER BY updated_at LIMIT $3`,
		string(domain.StatusPending), before, limit)
	if err != nil {
		return nil, err
	}
	return scanNotifications(rows)
}

func scanNotifications(rows *sql.Rows) ([]*domain.Notification, error) {
	defer rows.Close()
	var out []*domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// UpdateStatus records the outcome of a delivery attempt.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, u domain.StatusUpdate) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET status = $2, attempts = $3, last_error = $4, sent_at = COALESCE($5, sent_at),
		updated_at = $6 WHERE id = $1`,
		id, string(u.Status), u.Attempts, db.NullString(u.LastError), db.NullTime(u.SentAt), u.At)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNotification(s scanner) (*domain.Notification, error) {
	var n domain.Notification
	var userID, subject, lastError sql.NullString
	var typ, status string
	var sentAt sql.NullTime
	if err := s.Scan(&n.ID, &userID, &typ, &n.Channel, &subject, &n.Message, &status, &n.Attempts, &lastError,
		&sentAt, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return nil, err
	}
	n.UserID = userID.String
	n.Type = domain.Type(typ)
	n.Subject = subject.String
	n.Status = domain.Status(status)
	n.LastError = lastError.String
	n.SentAt = db.TimePtr(sentAt)
	return &n, nil
}
