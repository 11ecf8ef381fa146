package repository

import (
	"context"
	"errors"
	"time"

	"enterprise-api/backend/internal/mfa/domain"
)

// ErrChallengeNotFound is returned for unknown, expired or consumed challenges.
var ErrChallengeNotFound = errors.New("mfa challenge not found")

// Repository defines storage for login challenges. Entries expire on their own after ttl.
type Repository interface {
	Create(ctx context.Context, c *domain.Challenge, ttl time.Duration) error
	Get(ctx context.Context, id string) (*domain.Challenge, error)
	// RecordFailure counts a wrong code and deletes the challenge once maxAttempts is reached.
	// It reports whether the challenge was exhausted.
	RecordFailure(ctx context.Context, id string, maxAttempts int) (bool, error)
	// Consume deletes the challenge and reports whether this caller removed it.
	Consume(ctx context.Context, id string) (bool, error)
}

// DefaultChallengeTTL is the default login challenge expiry.
const DefaultChallengeTTL = 5 * time.Minute
