package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"enterprise-api/backend/internal/db"
	"enterprise-api/backend/internal/user/domain"
)

const userColumns = `id, email, username, password_hash, first_name, last_name, avatar, phone,
	is_active, is_email_verified, email_verified_at, failed_login_attempts, locked_until,
	two_factor_enabled, two_factor_secret, two_factor_pending_secret, last_login_at, last_login_ip,
	password_changed_at, created_at, updated_at, deleted_at`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(conn *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1 AND deleted_at IS NULL`, id)
	return scanOne(row)
}

// GetByEmail returns the user with the given email, or nil if not found.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1 AND deleted_at IS NULL`, email)
	return scanOne(row)
}

// GetByUsername returns the user with the given username, or nil if not found.
func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1 AND deleted_at IS NULL`, username)
	return scanOne(row)
}

// List returns one page of users newest first and the total number of matching users.
func (r *PostgresRepository) List(ctx context.Context, p ListParams) ([]*domain.User, int, error) {
	pattern := ""
	if s := strings.TrimSpace(p.Search); s != "" {
		pattern = "%" + s + "%"
	}
	const where = ` WHERE deleted_at IS NULL AND ($1 = '' OR email ILIKE $1 OR username ILIKE $1
		OR first_name ILIKE $1 OR last_name ILIKE $1)`

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`+where, pattern).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users`+where+` ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		pattern, p.Limit, p.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, u)
	}
	return out, total, rows.Err()
}

// Create persists the user. The user must have ID set; it is not assigned by this method.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO users (id, email, username, password_hash, first_name, last_name,
		avatar, phone, is_active, is_email_verified, email_verified_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		u.ID, u.Email, db.NullStringPtr(u.Username), u.PasswordHash, db.NullString(u.FirstName),
		db.NullString(u.LastName), db.NullString(u.Avatar), db.NullString(u.Phone), u.IsActive,
		u.IsEmailVerified, db.NullTime(u.EmailVerifiedAt), u.CreatedAt, u.UpdatedAt)
	return db.TranslateError(err)
}

// UpdateProfile updates the mutable profile columns of an existing user.
func (r *PostgresRepository) UpdateProfile(ctx context.Context, u *domain.User) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET email = $2, username = $3, first_name = $4, last_name = $5,
		avatar = $6, phone = $7, is_active = $8, updated_at = $9 WHERE id = $1 AND deleted_at IS NULL`,
		u.ID, u.Email, db.NullStringPtr(u.Username), db.NullString(u.FirstName), db.NullString(u.LastName),
		db.NullString(u.Avatar), db.NullString(u.Phone), u.IsActive, u.UpdatedAt)
	return db.TranslateError(err)
}

// SoftDelete stamps deleted_at; the row is never removed.
func (r *PostgresRepository) SoftDelete(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET deleted_at = $2, is_active = FALSE, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL`,
		id, at)
	return err
}

// RecordLogin stamps the last login time and client IP.
func (r *PostgresRepository) RecordLogin(ctx context.Context, id string, at time.Time, ip string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET last_login_at = $2, last_login_ip = $3, updated_at = $2 WHERE id = $1`,
		id, at, db.NullString(ip))
	return err
}

// RecordFailedLogin increments failed_login_attempts in a single statement so concurrent failures are all
// counted, and applies the lock in the same statement once the threshold is reached.
func (r *PostgresRepository) RecordFailedLogin(ctx context.Context, id string, threshold int, lockUntil, at time.Time) (FailedLogin, error) {
	var (
		attempts int
		locked   sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, `UPDATE users SET
			failed_login_attempts = failed_login_attempts + 1,
			locked_until = CASE WHEN failed_login_attempts + 1 >= $2 THEN $3 ELSE locked_until END,
			updated_at = $4
		WHERE id = $1
		RETURNING failed_login_attempts, locked_until`,
		id, threshold, lockUntil, at).Scan(&attempts, &locked)
	if err != nil {
		return FailedLogin{}, err
	}
	return FailedLogin{Attempts: attempts, LockedUntil: db.TimePtr(locked)}, nil
}

// ResetFailedLogins clears the failure counter and any lock.
func (r *PostgresRepository) ResetFailedLogins(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET failed_login_attempts = 0, locked_until = NULL, updated_at = $2 WHERE id = $1`, id, at)
	return err
}

// UpdatePassword replaces the password hash and stamps password_changed_at.
func (r *PostgresRepository) UpdatePassword(ctx context.Context, id, passwordHash string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $2, password_changed_at = $3, updated_at = $3 WHERE id = $1`,
		id, passwordHash, at)
	return err
}

// MarkEmailVerified sets is_email_verified for the active user with email.
func (r *PostgresRepository) MarkEmailVerified(ctx context.Context, email string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET is_email_verified = TRUE, email_verified_at = $2,
		updated_at = $2 WHERE email = $1 AND deleted_at IS NULL`, email, at)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// SetPendingTwoFactorSecret stores a secret awaiting confirmation. The confirmed secret is untouched.
func (r *PostgresRepository) SetPendingTwoFactorSecret(ctx context.Context, id, secret string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET two_factor_pending_secret = $2, updated_at = $3 WHERE id = $1`, id, secret, at)
	return err
}

// ConfirmTwoFactor moves the pending secret into two_factor_secret and enables 2FA.
func (r *PostgresRepository) ConfirmTwoFactor(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET two_factor_secret = two_factor_pending_secret,
		two_factor_pending_secret = NULL, two_factor_enabled = TRUE, updated_at = $2
		WHERE id = $1 AND two_factor_pending_secret IS NOT NULL`, id, at)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// DisableTwoFactor clears both secrets and the flag.
func (r *PostgresRepository) DisableTwoFactor(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET two_factor_enabled = FALSE, two_factor_secret = NULL,
		two_factor_pending_secret = NULL, updated_at = $2 WHERE id = $1`, id, at)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOne(row *sql.Row) (*domain.User, error) {
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

func scanUser(s rowScanner) (*domain.User, error) {
	var u domain.User
	var username, firstName, lastName, avatar, phone sql.NullString
	var secret, pendingSecret, lastLoginIP sql.NullString
	var emailVerifiedAt, lockedUntil, lastLoginAt, passwordChangedAt, deletedAt sql.NullTime
	err := s.Scan(&u.ID, &u.Email, &username, &u.PasswordHash, &firstName, &lastName, &avatar, &phone,
		&u.IsActive, &u.IsEmailVerified, &emailVerifiedAt, &u.FailedLoginAttempts, &lockedUntil,
		&u.TwoFactorEnabled, &secret, &pendingSecret, &lastLoginAt, &lastLoginIP,
		&passwordChangedAt, &u.CreatedAt, &u.UpdatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}
	u.Username = db.StringPtr(username)
	u.FirstName = firstName.String
	u.LastName = lastName.String
	u.Avatar = avatar.String
	u.Phone = phone.String
	u.TwoFactorSecret = secret.String
	u.TwoFactorPendingSecret = pendingSecret.String
	u.LastLoginIP = lastLoginIP.String
	u.EmailVerifiedAt = db.TimePtr(emailVerifiedAt)
	u.LockedUntil = db.TimePtr(lockedUntil)
	u.LastLoginAt = db.TimePtr(lastLoginAt)
	u.PasswordChangedAt = db.TimePtr(passwordChangedAt)
	u.DeletedAt = db.TimePtr(deletedAt)
	return &u, nil
}
