package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// promoteDue moves delayed jobs whose score (unix ms) is <= ARGV[1] onto the ready list.
var promoteDue = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, 100)
for _, job in ipairs(due) do
  redis.call('ZREM', KEYS[1], job)
  redis.call('RPUSH', KEYS[2], job)
end
return #due
`)

// RedisQueue stores ready jobs in a list and delayed jobs in a sorted set scored by due time.
type RedisQueue struct {
	client redis.Cmdable
	prefix string
	now    func() time.Time
}

// NewRedisQueue returns a queue whose keys start with prefix (e.g. "notify:").
func NewRedisQueue(client redis.Cmdable, prefix string) *RedisQueue {
	if prefix == "" {
		prefix = "notify:"
	}
	return &RedisQueue{client: client, prefix: prefix, now: time.Now}
}

func (q *RedisQueue) readyKey() string   { return q.prefix + "ready" }
func (q *RedisQueue) delayedKey() string { return q.prefix + "delayed" }

// Enqueue pushes job onto the ready list.
func (q *RedisQueue) Enqueue(ctx context.Context, job Job) error {
	payload, err := q.marshal(job)
	if err != nil {
		return err
	}
	return q.client.RPush(ctx, q.readyKey(), payload).Err()
}

// EnqueueAt adds job to the delayed set, due at at.
func (q *RedisQueue) EnqueueAt(ctx context.Context, job Job, at time.Time) error {
	payload, err := q.marshal(job)
	if err != nil {
		return err
	}
	return q.client.ZAdd(ctx, q.delayedKey(), redis.Z{Score: float64(at.UnixMilli()), Member: payload}).Err()
}

// Dequeue promotes due delayed jobs, then blocks up to timeout for the next ready job.
func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	if err := q.PromoteDue(ctx); err != nil {
		return nil, err
	}
	result, err := q.client.BLPop(ctx, timeout, q.readyKey()).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue: %w", err)
	}
	if len(result) < 2 {
		return nil, nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}

// PromoteDue moves every delayed job that is due onto the ready list.
func (q *RedisQueue) PromoteDue(ctx context.Context) error {
	err := promoteDue.Run(ctx, q.client, []string{q.delayedKey(), q.readyKey()}, q.now().UnixMilli()).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to promote delayed jobs: %w", err)
	}
	return nil
}

// Depth returns the number of ready and delayed jobs.
func (q *RedisQueue) Depth(ctx context.Context) (ready, delayed int64, err error) {
	if ready, err = q.client.LLen(ctx, q.readyKey()).Result(); err != nil {
		return 0, 0, err
	}
	if delayed, err = q.client.ZCard(ctx, q.delayedKey()).Result(); err != nil {
		return 0, 0, err
	}
	return ready, delayed, nil
}

func (q *RedisQueue) marshal(job Job) (string, error) {
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = q.now().UTC()
	}
	b, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job: %w", err)
	}
	return string(b), nil
}
