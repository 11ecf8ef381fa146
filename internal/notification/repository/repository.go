package repository

import (
	"context"
	"time"

	"enterprise-api/backend/internal/notification/domain"
)

// Repository defines persistence for notification records.
type Repository interface {
	Create(ctx context.Context, n *domain.Notification) error
	// GetByID returns nil when the notification does not exist.
	GetByID(ctx context.Context, id string) (*domain.Notification, error)
	// List returns notifications newest first, filtered by user when userID is non-empty.
	List(ctx context.Context, userID string) ([]*domain.Notification, error)
	UpdateStatus(ctx context.Context, id string, u domain.StatusUpdate) error
	// ListStalePending returns up to limit pending notifications last updated before the given time, oldest first.
	ListStalePending(ctx context.Context, before time.Time, limit int) ([]*domain.Notification, error)
}
