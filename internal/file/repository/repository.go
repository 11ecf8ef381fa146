package repository

import (
	"context"
	"time"

	"enterprise-api/backend/internal/file/domain"
)

// Repository defines persistence for file metadata. Reads skip soft-deleted rows.
type Repository interface {
	Create(ctx context.Context, f *domain.File) error
	// GetByID returns nil when the file does not exist or was deleted.
	GetByID(ctx context.Context, id string) (*domain.File, error)
	// List returns files newest first, filtered by user when userID is non-empty.
	List(ctx context.Context, userID string) ([]*domain.File, error)
	// SoftDelete returns false when no live file has the id.
	SoftDelete(ctx context.Context, id string, at time.Time) (bool, error)
}
