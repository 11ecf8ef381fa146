package repository

import (
	"context"
	"time"

	"enterprise-api/backend/internal/verification/domain"
)

// Repository defines persistence for email verification and password reset tokens.
type Repository interface {
	Create(ctx context.Context, t *domain.Token) error
	// Get returns the token of the given purpose stored under hash, or nil if not found.
	Get(ctx context.Context, purpose domain.Purpose, hash string) (*domain.Token, error)
	// Consume marks a reset token used or deletes a verification token. It returns false when the
	// token was already consumed, so a token redeems at most once under concurrency.
	Consume(ctx context.Context, t *domain.Token) (bool, error)
	// DeleteExpired removes tokens that expired before now and returns how many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
