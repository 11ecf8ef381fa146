package repository

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"enterprise-api/backend/internal/mfa/domain"
)

const keyPrefix = "mfa:challenge:"

// recordFailure increments attempts only on an existing challenge and deletes it at the limit.
// Returns -1 for a missing key, otherwise the new attempt count.
var recordFailure = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -1
end
local n = redis.call('HINCRBY', KEYS[1], 'attempts', 1)
if n >= tonumber(ARGV[1]) then
  redis.call('DEL', KEYS[1])
end
return n
`)

// RedisRepository stores challenges as Redis hashes with a TTL.
type RedisRepository struct {
	client redis.Cmdable
}

// NewRedisRepository returns a challenge store backed by client.
func NewRedisRepository(client redis.Cmdable) *RedisRepository {
	return &RedisRepository{client: client}
}

func key(id string) string { return keyPrefix + id }

// Create stores c under its ID for ttl.
func (r *RedisRepository) Create(ctx context.Context, c *domain.Challenge, ttl time.Duration) error {
	k := key(c.ID)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, k,
			"user_id", c.UserID,
			"ip_address", c.IPAddress,
			"user_agent", c.UserAgent,
			"attempts", c.Attempts,
			"expires_at", c.ExpiresAt.Unix(),
		)
		pipe.Expire(ctx, k, ttl)
		return nil
	})
	return err
}

// Get returns the challenge or ErrChallengeNotFound.
func (r *RedisRepository) Get(ctx context.Context, id string) (*domain.Challenge, error) {
	m, err := r.client.HGetAll(ctx, key(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(m) == 0 || m["user_id"] == "" {
		return nil, ErrChallengeNotFound
	}
	attempts, _ := strconv.Atoi(m["attempts"])
	exp, _ := strconv.ParseInt(m["expires_at"], 10, 64)
	return &domain.Challenge{
		ID:        id,
		UserID:    m["user_id"],
		IPAddress: m["ip_address"],
		UserAgent: m["user_agent"],
		Attempts:  attempts,
		ExpiresAt: time.Unix(exp, 0).UTC(),
	}, nil
}

// RecordFailure counts a failed code submission.
func (r *RedisRepository) RecordFailure(ctx context.Context, id string, maxAttempts int) (bool, error) {
	n, err := recordFailure.Run(ctx, r.client, []string{key(id)}, maxAttempts).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, ErrChallengeNotFound
		}
		return false, err
	}
	if n < 0 {
		return false, ErrChallengeNotFound
	}
	return n >= maxAttempts, nil
}

// Consume removes the challenge. Only one concurrent caller observes true.
func (r *RedisRepository) Consume(ctx context.Context, id string) (bool, error) {
	n, err := r.client.Del(ctx, key(id)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
