package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"enterprise-api/backend/internal/verification/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a token repository that uses the given db for persistence.
func NewPostgresRepository(conn *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

func table(p domain.Purpose) (string, error) {
	switch p {
	case domain.PurposeEmailVerification:
		return "email_verification_tokens", nil
	case domain.PurposePasswordReset:
		return "password_reset_tokens", nil
	default:
		return "", fmt.Errorf("unknown token purpose %q", p)
	}
}

// Create persists t. The token must have ID and TokenHash set.
func (r *PostgresRepository) Create(ctx context.Context, t *domain.Token) error {
	var err error
	switch t.Purpose {
	case domain.PurposeEmailVerification:
		_, err = r.db.ExecContext(ctx, `INSERT INTO email_verification_tokens (id, token_hash, email, expires_at, created_at)
			VALUES ($1, $2, $3, $4, $5)`, t.ID, t.TokenHash, t.Email, t.ExpiresAt, t.CreatedAt)
	case domain.PurposePasswordReset:
		_, err = r.db.ExecContext(ctx, `INSERT INTO password_reset_tokens (id, token_hash, email, expires_at, used, created_at)
			VALUES ($1, $2, $3, $4, FALSE, $5)`, t.ID, t.TokenHash, t.Email, t.ExpiresAt, t.CreatedAt)
	default:
		_, err = table(t.Purpose)
	}
	return err
}

// Get returns the token for hash, or nil if not found.
func (r *PostgresRepository) Get(ctx context.Context, purpose domain.Purpose, hash string) (*domain.Token, error) {
	t := domain.Token{Purpose: purpose}
	var row *sql.Row
	switch purpose {
	case domain.PurposeEmailVerification:
		row = r.db.QueryRowContext(ctx, `SELECT id, token_hash, email, expires_at, FALSE, created_at
			FROM email_verification_tokens WHERE token_hash = $1`, hash)
	case domain.PurposePasswordReset:
		row = r.db.QueryRowContext(ctx, `SELECT id, token_hash, email, expires_at, used, created_at
			FROM password_reset_tokens WHERE token_hash = $1`, hash)
	default:
		_, err := table(purpose)
		return nil, err
	}
	if err := row.Scan(&t.ID, &t.TokenHash, &t.Email, &t.ExpiresAt, &t.Used, &t.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// Consume redeems t exactly once.
func (r *PostgresRepository) Consume(ctx context.Context, t *domain.Token) (bool, error) {
	var res sql.Result
	var err error
	switch t.Purpose {
	case domain.PurposeEmailVerification:
		res, err = r.db.ExecContext(ctx, `DELETE FROM email_verification_tokens WHERE id = $1`, t.ID)
	case domain.PurposePasswordReset:
		res, err = r.db.ExecContext(ctx, `UPDATE password_reset_tokens SET used = TRUE WHERE id = $1 AND used = FALSE`, t.ID)
	default:
		_, err = table(t.Purpose)
	}
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// DeleteExpired purges expired tokens from both tables.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	var total int64
	for _, p := range []domain.Purpose{domain.PurposeEmailVerification, domain.PurposePasswordReset} {
		name, _ := table(p)
		res, err := r.db.ExecContext(ctx, `DELETE FROM `+name+` WHERE expires_at < $1`, now)
		if err != nil {
			return total, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}
