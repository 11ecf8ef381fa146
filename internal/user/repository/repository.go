package repository

import (
	"context"
	"time"

	"enterprise-api/backend/internal/user/domain"
)

// ListParams selects a page of users. Search matches email, username, first or last name (case-insensitive).
type ListParams struct {
	Offset int
	Limit  int
	Search string
}

// FailedLogin is the lockout state after a failed login was recorded.
type FailedLogin struct {
	Attempts    int
	LockedUntil *time.Time
}

// Repository defines persistence for users. Lookups ignore soft-deleted rows and return (nil, nil) when
// nothing matches.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	List(ctx context.Context, p ListParams) ([]*domain.User, int, error)
	Create(ctx context.Context, u *domain.User) error
	// UpdateProfile writes email, username, names, avatar, phone and is_active.
	UpdateProfile(ctx context.Context, u *domain.User) error
	SoftDelete(ctx context.Context, id string, at time.Time) error

	RecordLogin(ctx context.Context, id string, at time.Time, ip string) error
	// RecordFailedLogin atomically increments the failure counter and sets locked_until to lockUntil once the
	// counter reaches threshold.
	RecordFailedLogin(ctx context.Context, id string, threshold int, lockUntil, at time.Time) (FailedLogin, error)
	ResetFailedLogins(ctx context.Context, id string, at time.Time) error
	UpdatePassword(ctx context.Context, id, passwordHash string, at time.Time) error
	// MarkEmailVerified returns false when no active user has the email.
	MarkEmailVerified(ctx context.Context, email string, at time.Time) (bool, error)

	SetPendingTwoFactorSecret(ctx context.Context, id, secret string, at time.Time) error
	// ConfirmTwoFactor promotes the pending secret and enables 2FA. Returns false when no secret was pending.
	ConfirmTwoFactor(ctx context.Context, id string, at time.Time) (bool, error)
	DisableTwoFactor(ctx context.Context, id string, at time.Time) error
}
