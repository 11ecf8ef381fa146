package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"enterprise-api/backend/internal/metrics"
	"enterprise-api/backend/internal/notification/domain"
	"enterprise-api/backend/internal/notification/queue"
)

type memRepo struct {
	mu      sync.Mutex
	items   map[string]*domain.Notification
	updates []domain.StatusUpdate
	// getErrs and updateErrs are returned, one per call, before the repo starts answering normally.
	getErrs    []error
	updateErrs []error
}

func (r *memRepo) Create(_ context.Context, n *domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[n.ID] = n
	return nil
}

func (r *memRepo) GetByID(_ context.Context, id string) (*domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.getErrs) > 0 {
		err := r.getErrs[0]
		r.getErrs = r.getErrs[1:]
		return nil, err
	}
	n, ok := r.items[id]
	if !ok {
		return nil, nil
	}
	cp := *n
	return &cp, nil
}

func (r *memRepo) List(context.Context, string) ([]*domain.Notification, error) { return nil, nil }

func (r *memRepo) UpdateStatus(_ context.Context, id string, u domain.StatusUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.updateErrs) > 0 {
		err := r.updateErrs[0]
		r.updateErrs = r.updateErrs[1:]
		return err
	}
	r.updates = append(r.updates, u)
	n := r.items[id]
	n.Status, n.Attempts, n.LastError, n.SentAt, n.UpdatedAt = u.Status, u.Attempts, u.LastError, u.SentAt, u.At
	return nil
}

func (r *memRepo) ListStalePending(_ context.Context, before time.Time, limit int) ([]*domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Notification
	for _, n := range r.items {
		if n.Status == domain.StatusPending && n.UpdatedAt.Before(before) && len(out) < limit {
			cp := *n
			out = append(out, &cp)
		}
	}
	return out, nil
}

type scheduled struct {
	job queue.Job
	at  time.Time
}

type fakeQueue struct {
	mu      sync.Mutex
	ready   []queue.Job
	delayed []scheduled
	down    bool
}

var errQueueDown = errors.New("redis: connection refused")

func (q *fakeQueue) Enqueue(_ context.Context, job queue.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.down {
		return errQueueDown
	}
	q.ready = append(q.ready, job)
	return nil
}

func (q *fakeQueue) EnqueueAt(_ context.Context, job queue.Job, at time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.down {
		return errQueueDown
	}
	q.delayed = append(q.delayed, scheduled{job: job, at: at})
	return nil
}

func (q *fakeQueue) Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, error) {
	q.mu.Lock()
	if len(q.ready) > 0 {
		job := q.ready[0]
		q.ready = q.ready[1:]
		q.mu.Unlock()
		return &job, nil
	}
	q.mu.Unlock()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(timeout):
		return nil, nil
	}
}

type flakySender struct {
	mu       sync.Mutex
	failures int
	calls    int
	sent     chan string
}

func (s *flakySender) attempt(to string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failures {
		return errors.New("upstream unavailable")
	}
	if s.sent != nil {
		s.sent <- to
	}
	return nil
}

func (s *flakySender) SendEmail(_ context.Context, to, _, _ string) error { return s.attempt(to) }
func (s *flakySender) Send(_ context.Context, to, _ string) error          { return s.attempt(to) }

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func setup(typ domain.Type, failures int) (*Worker, *memRepo, *fakeQueue, *flakySender, *metrics.Metrics) {
	repo := &memRepo{items: map[string]*domain.Notification{
		"n1": {ID: "n1", Type: typ, Channel: "alice@example.com", Subject: "Hi", Message: "body",
			Status: domain.StatusPending, CreatedAt: fixedNow, UpdatedAt: fixedNow},
	}}
	q := &fakeQueue{}
	s := &flakySender{failures: failures}
	m := metrics.New()
	w := New(repo, q, s, s, m, nil, Options{})
	w.now = func() time.Time { return fixedNow }
	return w, repo, q, s, m
}

func TestProcess_Success(t *testing.T) {
	w, repo, q, _, m := setup(domain.TypeEmail, 0)
	require.NoError(t, w.Process(context.Background(), queue.Job{NotificationID: "n1"}))

	n, _ := repo.GetByID(context.Background(), "n1")
	assert.Equal(t, domain.StatusSent, n.Status)
	assert.Equal(t, 1, n.Attempts)
	require.NotNil(t, n.SentAt)
	assert.True(t, n.SentAt.Equal(fixedNow))
	assert.Empty(t, q.delayed)
	count, err := testutil.GatherAndCount(m.Registry(), "notifications_sent_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestProcess_RetriesWithExponentialBackoff(t *testing.T) {
	w, repo, q, _, _ := setup(domain.TypeSMS, 5)
	ctx := context.Background()

	require.NoError(t, w.Process(ctx, queue.Job{NotificationID: "n1"}))
	require.Len(t, q.delayed, 1)
	assert.Equal(t, fixedNow.Add(2*time.Second), q.delayed[0].at)
	assert.Equal(t, 1, q.delayed[0].job.Attempt)
	n, _ := repo.GetByID(ctx, "n1")
	assert.Equal(t, domain.StatusPending, n.Status)
	assert.Equal(t, "upstream unavailable", n.LastError)

	require.NoError(t, w.Process(ctx, q.delayed[0].job))
	require.Len(t, q.delayed, 2)
	assert.Equal(t, fixedNow.Add(4*time.Second), q.delayed[1].at)

	require.NoError(t, w.Process(ctx, q.delayed[1].job))
	assert.Len(t, q.delayed, 2, "no retry after the last attempt")
	n, _ = repo.GetByID(ctx, "n1")
	assert.Equal(t, domain.StatusFailed, n.Status)
	assert.Equal(t, 3, n.Attempts)
	assert.Nil(t, n.SentAt)
}

func TestProcess_RecoversOnSecondAttempt(t *testing.T) {
	w, repo, q, s, _ := setup(domain.TypeEmail, 1)
	ctx := context.Background()
	require.NoError(t, w.Process(ctx, queue.Job{NotificationID: "n1"}))
	require.NoError(t, w.Process(ctx, q.delayed[0].job))

	n, _ := repo.GetByID(ctx, "n1")
	assert.Equal(t, domain.StatusSent, n.Status)
	assert.Equal(t, 2, n.Attempts)
	assert.Equal(t, 2, s.calls)
}

func TestProcess_SkipsMissingAndFinal(t *testing.T) {
	w, repo, _, s, _ := setup(domain.TypeEmail, 0)
	ctx := context.Background()
	require.NoError(t, w.Process(ctx, queue.Job{NotificationID: "gone"}))

	repo.items["n1"].Status = domain.StatusSent
	require.NoError(t, w.Process(ctx, queue.Job{NotificationID: "n1"}))
	assert.Zero(t, s.calls)
}

func TestProcess_UnconfiguredChannelFails(t *testing.T) {
	w, repo, _, _, _ := setup(domain.TypeSMS, 0)
	w.sms = nil
	w.opts.MaxAttempts = 1
	require.NoError(t, w.Process(context.Background(), queue.Job{NotificationID: "n1"}))
	n, _ := repo.GetByID(context.Background(), "n1")
	assert.Equal(t, domain.StatusFailed, n.Status)
	assert.Contains(t, n.LastError, "not configured")
}

func TestProcess_LoadFailureRequeuesJob(t *testing.T) {
	w, repo, q, s, _ := setup(domain.TypeEmail, 0)
	repo.getErrs = []error{errors.New("db: connection reset")}
	ctx := context.Background()

	require.NoError(t, w.Process(ctx, queue.Job{NotificationID: "n1"}))
	require.Len(t, q.delayed, 1)
	assert.Equal(t, 0, q.delayed[0].job.Attempt, "a storage failure must not consume an attempt")
	assert.Equal(t, fixedNow.Add(2*time.Second), q.delayed[0].at)
	assert.Zero(t, s.calls)

	require.NoError(t, w.Process(ctx, q.delayed[0].job))
	n, _ := repo.GetByID(ctx, "n1")
	assert.Equal(t, domain.StatusSent, n.Status)
	assert.Equal(t, 1, n.Attempts)
}

func TestProcess_RecordAttemptFailureRequeuesJob(t *testing.T) {
	w, repo, q, _, _ := setup(domain.TypeSMS, 1)
	repo.updateErrs = []error{errors.New("db: connection reset")}
	ctx := context.Background()

	require.NoError(t, w.Process(ctx, queue.Job{NotificationID: "n1", Attempt: 1}))
	require.Len(t, q.delayed, 1)
	assert.Equal(t, 1, q.delayed[0].job.Attempt)
	assert.Equal(t, fixedNow.Add(4*time.Second), q.delayed[0].at)

	require.NoError(t, w.Process(ctx, q.delayed[0].job))
	n, _ := repo.GetByID(ctx, "n1")
	assert.Equal(t, domain.StatusSent, n.Status)
	assert.Equal(t, 2, n.Attempts)
}

func TestProcess_QueueAndStorageDownLeavesRecordForRecovery(t *testing.T) {
	w, repo, q, _, _ := setup(domain.TypeEmail, 0)
	repo.getErrs = []error{errors.New("db: connection reset")}
	q.down = true
	ctx := context.Background()

	err := w.Process(ctx, queue.Job{NotificationID: "n1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Contains(t, err.Error(), "connection refused")

	q.down = false
	w.now = func() time.Time { return fixedNow.Add(time.Hour) }
	count, err := w.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	require.Len(t, q.ready, 1)
	assert.Equal(t, "n1", q.ready[0].NotificationID)

	require.NoError(t, w.Process(ctx, q.ready[0]))
	n, _ := repo.GetByID(ctx, "n1")
	assert.Equal(t, domain.StatusSent, n.Status)
}

func TestRecover_SkipsFreshAndFinalAndTouchesRecords(t *testing.T) {
	w, repo, q, _, _ := setup(domain.TypeEmail, 0)
	old := fixedNow.Add(-time.Hour)
	repo.items["n1"].UpdatedAt = old
	repo.items["n1"].Attempts = 2
	repo.items["n2"] = &domain.Notification{ID: "n2", Type: domain.TypeEmail, Status: domain.StatusPending, UpdatedAt: fixedNow}
	repo.items["n3"] = &domain.Notification{ID: "n3", Type: domain.TypeEmail, Status: domain.StatusSent, UpdatedAt: old}
	ctx := context.Background()

	count, err := w.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	require.Len(t, q.ready, 1)
	assert.Equal(t, queue.Job{NotificationID: "n1", Attempt: 2, EnqueuedAt: fixedNow}, q.ready[0])
	assert.True(t, repo.items["n1"].UpdatedAt.Equal(fixedNow))

	count, err = w.Recover(ctx)
	require.NoError(t, err)
	assert.Zero(t, count, "a touched record is not re-enqueued by the next sweep")
}

func TestBackoff(t *testing.T) {
	w, _, _, _, _ := setup(domain.TypeEmail, 0)
	assert.Equal(t, 2*time.Second, w.Backoff(1))
	assert.Equal(t, 4*time.Second, w.Backoff(2))
	assert.Equal(t, 8*time.Second, w.Backoff(3))
}

func TestRun_DeliversUntilCancelled(t *testing.T) {
	w, _, q, s, _ := setup(domain.TypeEmail, 0)
	w.opts.PollTimeout = 10 * time.Millisecond
	s.sent = make(chan string, 1)
	require.NoError(t, q.Enqueue(context.Background(), queue.Job{NotificationID: "n1"}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	select {
	case to := <-s.sent:
		assert.Equal(t, "alice@example.com", to)
	case <-time.After(2 * time.Second):
		t.Fatal("notification was not delivered")
	}
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}
