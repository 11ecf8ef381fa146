package repository

import (
	"context"
	"time"

	"enterprise-api/backend/internal/session/domain"
)

// Repository defines persistence for refresh tokens and the sessions bound to them.
// Operations that touch both tables run in one transaction so a token and its session never disagree.
type Repository interface {
	// Create stores a new refresh token and its session.
	Create(ctx context.Context, token *domain.RefreshToken, s *domain.Session) error
	// GetRefreshToken returns the stored token for hash, or nil if not found.
	GetRefreshToken(ctx context.Context, hash string) (*domain.RefreshToken, error)
	// Rotate revokes oldHash only if it is still live, stores next and moves the session onto it.
	// It returns false when oldHash was already revoked, so at most one concurrent rotation wins.
	Rotate(ctx context.Context, oldHash string, next *domain.RefreshToken, at time.Time) (bool, error)
	// RevokeByToken revokes the token with hash and deactivates its session. Unknown or already
	// revoked tokens are not an error.
	RevokeByToken(ctx context.Context, hash string, at time.Time) error
	// RevokeAllForUser revokes every refresh token and deactivates every session of userID.
	RevokeAllForUser(ctx context.Context, userID string, at time.Time) error
	// RevokeSession deactivates the session id owned by userID and revokes its refresh token.
	// It returns false when no active session matched.
	RevokeSession(ctx context.Context, userID, id string, at time.Time) (bool, error)
	// ListActive returns the active, unexpired sessions of userID, newest first.
	ListActive(ctx context.Context, userID string, now time.Time) ([]*domain.Session, error)
}
