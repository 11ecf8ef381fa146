package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newQueue(t *testing.T) *RedisQueue {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisQueue(client, "test:")
}

func TestEnqueueDequeue_FIFO(t *testing.T) {
	q := newQueue(t)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, Job{NotificationID: "n1"}))
	require.NoError(t, q.Enqueue(ctx, Job{NotificationID: "n2", Attempt: 1}))

	job, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, "n1", job.NotificationID)
	assert.False(t, job.EnqueuedAt.IsZero())

	job, err = q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "n2", job.NotificationID)
	assert.Equal(t, 1, job.Attempt)
}

func TestEnqueueAt_NotReadyUntilDue(t *testing.T) {
	q := newQueue(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	q.now = func() time.Time { return now }

	require.NoError(t, q.EnqueueAt(ctx, Job{NotificationID: "n1", Attempt: 1}, now.Add(2*time.Second)))
	require.NoError(t, q.PromoteDue(ctx))
	ready, delayed, err := q.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), ready)
	assert.Equal(t, int64(1), delayed)

	now = now.Add(2 * time.Second)
	job, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, "n1", job.NotificationID)
	assert.Equal(t, 1, job.Attempt)

	ready, delayed, err = q.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), ready+delayed)
}

func TestDequeue_TimeoutReturnsNil(t *testing.T) {
	q := newQueue(t)
	job, err := q.Dequeue(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Nil(t, job)
}
