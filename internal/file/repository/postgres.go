package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"enterprise-api/backend/internal/db"
	"enterprise-api/backend/internal/file/domain"
)

const fileColumns = `id, user_id, original_name, filename, mime_type, size, path, storage_type, created_at, deleted_at`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a file repository that uses the given db for persistence.
func NewPostgresRepository(conn *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// Create inserts the file record. The record must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, f *domain.File) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO files (`+fileColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		f.ID, f.UserID, f.OriginalName, f.Filename, f.MimeType, f.Size, f.Path, f.StorageType, f.CreatedAt,
		db.NullTime(f.DeletedAt))
	return db.TranslateError(err)
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.File, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM files WHERE id = $1 AND deleted_at IS NULL`, id)
	f, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return f, err
}

func (r *PostgresRepository) List(ctx context.Context, userID string) ([]*domain.File, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+fileColumns+` FROM files
		WHERE deleted_at IS NULL AND ($1 = '' OR user_id::text = $1) ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) SoftDelete(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE files SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL`, id, at)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFile(s scanner) (*domain.File, error) {
	var f domain.File
	var deletedAt sql.NullTime
	if err := s.Scan(&f.ID, &f.UserID, &f.OriginalName, &f.Filename, &f.MimeType, &f.Size, &f.Path,
		&f.StorageType, &f.CreatedAt, &deletedAt); err != nil {
		return nil, err
	}
	f.DeletedAt = db.TimePtr(deletedAt)
	return &f, nil
}
