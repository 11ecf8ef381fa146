package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"enterprise-api/backend/internal/db"
	"enterprise-api/backend/internal/session/domain"
)

const sessionColumns = `id, user_id, refresh_token_hash, ip_address, user_agent, is_active, expires_at, created_at, updated_at`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(conn *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// Create persists the refresh token and its session. Both must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, token *domain.RefreshToken, s *domain.Session) error {
	return db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := insertToken(ctx, tx, token); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO sessions (`+sessionColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			s.ID, s.UserID, s.RefreshTokenHash, s.IPAddress, s.UserAgent, s.IsActive, s.ExpiresAt, s.CreatedAt, s.UpdatedAt)
		return db.TranslateError(err)
	})
}

func insertToken(ctx context.Context, tx *sql.Tx, t *domain.RefreshToken) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO refresh_tokens (id, token_hash, user_id, expires_at, is_revoked, created_at)
		VALUES ($1, $2, $3, $4, FALSE, $5)`, t.ID, t.TokenHash, t.UserID, t.ExpiresAt, t.CreatedAt)
	return db.TranslateError(err)
}

// GetRefreshToken returns the token stored under hash, or nil if not found.
func (r *PostgresRepository) GetRefreshToken(ctx context.Context, hash string) (*domain.RefreshToken, error) {
	var t domain.RefreshToken
	var revokedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, `SELECT id, token_hash, user_id, expires_at, is_revoked, revoked_at, created_at
		FROM refresh_tokens WHERE token_hash = $1`, hash).
		Scan(&t.ID, &t.TokenHash, &t.UserID, &t.ExpiresAt, &t.IsRevoked, &revokedAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	t.RevokedAt = db.TimePtr(revokedAt)
	return &t, nil
}

// Rotate swaps oldHash for next. The conditional UPDATE makes the revocation the serialization point:
// a second caller presenting the same token finds is_revoked already set and gets false.
func (r *PostgresRepository) Rotate(ctx context.Context, oldHash string, next *domain.RefreshToken, at time.Time) (bool, error) {
	rotated := false
	err := db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var id string
		err := tx.QueryRowContext(ctx, `UPDATE refresh_tokens SET is_revoked = TRUE, revoked_at = $2
			WHERE token_hash = $1 AND is_revoked = FALSE RETURNING id`, oldHash, at).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := insertToken(ctx, tx, next); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE sessions SET refresh_token_hash = $2, expires_at = $3, updated_at = $4
			WHERE refresh_token_hash = $1 AND is_active = TRUE`, oldHash, next.TokenHash, next.ExpiresAt, at); err != nil {
			return err
		}
		rotated = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return rotated, nil
}

// RevokeByToken revokes the token and deactivates the session bound to it.
func (r *PostgresRepository) RevokeByToken(ctx context.Context, hash string, at time.Time) error {
	return db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE refresh_tokens SET is_revoked = TRUE, revoked_at = $2
			WHERE token_hash = $1 AND is_revoked = FALSE`, hash, at); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `UPDATE sessions SET is_active = FALSE, updated_at = $2
			WHERE refresh_token_hash = $1 AND is_active = TRUE`, hash, at)
		return err
	})
}

// RevokeAllForUser revokes all live refresh tokens and sessions for userID.
func (r *PostgresRepository) RevokeAllForUser(ctx context.Context, userID string, at time.Time) error {
	return db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE refresh_tokens SET is_revoked = TRUE, revoked_at = $2
			WHERE user_id = $1 AND is_revoked = FALSE`, userID, at); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `UPDATE sessions SET is_active = FALSE, updated_at = $2
			WHERE user_id = $1 AND is_active = TRUE`, userID, at)
		return err
	})
}

// RevokeSession deactivates one session of userID and revokes the refresh token it holds.
func (r *PostgresRepository) RevokeSession(ctx context.Context, userID, id string, at time.Time) (bool, error) {
	found := false
	err := db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var hash string
		err := tx.QueryRowContext(ctx, `UPDATE sessions SET is_active = FALSE, updated_at = $3
			WHERE id = $1 AND user_id = $2 AND is_active = TRUE RETURNING refresh_token_hash`, id, userID, at).Scan(&hash)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		_, err = tx.ExecContext(ctx, `UPDATE refresh_tokens SET is_revoked = TRUE, revoked_at = $2
			WHERE token_hash = $1 AND is_revoked = FALSE`, hash, at)
		return err
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

// ListActive returns active, unexpired sessions for userID ordered by creation time descending.
func (r *PostgresRepository) ListActive(ctx context.Context, userID string, now time.Time) ([]*domain.Session, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM sessions
		WHERE user_id = $1 AND is_active = TRUE AND expires_at > $2 ORDER BY created_at DESC`, userID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Session
	for rows.Next() {
		var s domain.Session
		if err := rows.Scan(&s.ID, &s.UserID, &s.RefreshTokenHash, &s.IPAddress, &s.UserAgent, &s.IsActive,
			&s.ExpiresAt, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}
