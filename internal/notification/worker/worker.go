// Package worker drains the notification queue and delivers each notification with retries.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"enterprise-api/backend/internal/logging"
	"enterprise-api/backend/internal/metrics"
	"enterprise-api/backend/internal/notification/domain"
	"enterprise-api/backend/internal/notification/queue"
	"enterprise-api/backend/internal/notification/repository"
	"enterprise-api/backend/internal/notification/sender"
)

const (
	defaultMaxAttempts = 3
	defaultBackoffBase = 2 * time.Second
	defaultPollTimeout = 5 * time.Second
	defaultStaleAfter  = 15 * time.Minute
	// recoverBatch caps how many stale notifications one sweep re-enqueues.
	recoverBatch = 100
	// errorPause is how long Run waits after a queue error before polling again.
	errorPause = time.Second
)

// Options tunes retry behaviour. Zero values take the defaults.
type Options struct {
	MaxAttempts int
	BackoffBase time.Duration
	PollTimeout time.Duration
	// StaleAfter is how long a pending notification may go untouched before a sweep re-enqueues it.
	StaleAfter time.Duration
}

// Worker delivers queued notifications.
type Worker struct {
	repo    repository.Repository
	queue   queue.Queue
	email   sender.EmailSender
	sms     sender.SMSSender
	metrics *metrics.Metrics
	log     logrus.FieldLogger
	opts    Options
	now     func() time.Time
}

// New returns a worker. m may be nil.
func New(repo repository.Repository, q queue.Queue, email sender.EmailSender, sms sender.SMSSender, m *metrics.Metrics, log logrus.FieldLogger, opts Options) *Worker {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = defaultBackoffBase
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = defaultPollTimeout
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = defaultStaleAfter
	}
	return &Worker{
		repo: repo, queue: q, email: email, sms: sms, metrics: m,
		log: logging.OrDiscard(log), opts: opts, now: time.Now,
	}
}

// Run processes jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.log.WithField("max_attempts", w.opts.MaxAttempts).Info("notification worker started")
	var lastSweep time.Time
	for {
		if ctx.Err() != nil {
			w.log.Info("notification worker stopped")
			return nil
		}
		if now := w.now(); now.Sub(lastSweep) >= w.opts.StaleAfter {
			lastSweep = now
			if _, err := w.Recover(ctx); err != nil && ctx.Err() == nil {
				w.log.WithError(err).Warn("notification worker: recovery sweep failed")
			}
		}
		job, err := w.queue.Dequeue(ctx, w.opts.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.log.WithError(err).Warn("notification worker: dequeue failed")
			select {
			case <-ctx.Done():
			case <-time.After(errorPause):
			}
			continue
		}
		if job == nil {
			continue
		}
		if err := w.Process(ctx, *job); err != nil {
			w.log.WithError(err).WithField("notification_id", job.NotificationID).Error("notification worker: job failed")
		}
	}
}

// Backoff returns the delay before retrying after the given attempt number (1-based).
func (w *Worker) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return w.opts.BackoffBase << (attempt - 1)
}

// Process makes one delivery attempt for job. Delivery errors are recorded and retried, not returned.
// When storage fails before the attempt is recorded, the job goes back on the queue with its attempt count
// unchanged. The returned error means the job could not be re-queued either; Recover picks it up later.
func (w *Worker) Process(ctx context.Context, job queue.Job) error {
	n, err := w.repo.GetByID(ctx, job.NotificationID)
	if err != nil {
		return w.requeue(ctx, job, fmt.Errorf("load notification: %w", err))
	}
	if n == nil {
		w.log.WithField("notification_id", job.NotificationID).Warn("notification worker: notification no longer exists")
		return nil
	}
	if n.Status != domain.StatusPending {
		return nil
	}

	attempt := job.Attempt + 1
	logger := w.log.WithFields(logrus.Fields{"notification_id": n.ID, "type": n.Type, "attempt": attempt})
	sendErr := w.deliver(ctx, n)
	now := w.now().UTC()

	if sendErr == nil {
		if err := w.repo.UpdateStatus(ctx, n.ID, domain.StatusUpdate{
			Status: domain.StatusSent, Attempts: attempt, SentAt: &now, At: now,
		}); err != nil {
			return fmt.Errorf("mark sent: %w", err)
		}
		w.metrics.NotificationSent(string(n.Type), string(domain.StatusSent))
		logger.Debug("notification delivered")
		return nil
	}

	if attempt >= w.opts.MaxAttempts {
		if err := w.repo.UpdateStatus(ctx, n.ID, domain.StatusUpdate{
			Status: domain.StatusFailed, Attempts: attempt, LastError: sendErr.Error(), At: now,
		}); err != nil {
			return fmt.Errorf("mark failed: %w", err)
		}
		w.metrics.NotificationSent(string(n.Type), string(domain.StatusFailed))
		logger.WithError(sendErr).Error("notification delivery failed permanently")
		return nil
	}

	if err := w.repo.UpdateStatus(ctx, n.ID, domain.StatusUpdate{
		Status: domain.StatusPending, Attempts: attempt, LastError: sendErr.Error(), At: now,
	}); err != nil {
		return w.requeue(ctx, job, fmt.Errorf("record attempt: %w", err))
	}
	delay := w.Backoff(attempt)
	next := queue.Job{NotificationID: n.ID, Attempt: attempt, EnqueuedAt: now}
	if err := w.queue.EnqueueAt(ctx, next, now.Add(delay)); err != nil {
		return fmt.Errorf("schedule retry: %w", err)
	}
	logger.WithError(sendErr).WithField("retry_in", delay.String()).Warn("notification delivery failed, retrying")
	return nil
}

// requeue schedules job again after the backoff for its next attempt, without counting an attempt.
func (w *Worker) requeue(ctx context.Context, job queue.Job, cause error) error {
	delay := w.Backoff(job.Attempt + 1)
	if err := w.queue.EnqueueAt(ctx, job, w.now().UTC().Add(delay)); err != nil {
		return fmt.Errorf("%w (requeue: %v)", cause, err)
	}
	w.log.WithError(cause).WithFields(logrus.Fields{
		"notification_id": job.NotificationID,
		"retry_in":        delay.String(),
	}).Warn("notification worker: storage error, job requeued")
	return nil
}

// Recover re-enqueues pending notifications not touched for StaleAfter, so jobs lost to a queue outage are
// still delivered. Each record is touched before it is enqueued so the next sweep skips it.
func (w *Worker) Recover(ctx context.Context) (int, error) {
	now := w.now().UTC()
	stale, err := w.repo.ListStalePending(ctx, now.Add(-w.opts.StaleAfter), recoverBatch)
	if err != nil {
		return 0, fmt.Errorf("list stale notifications: %w", err)
	}
	count := 0
	for _, n := range stale {
		if err := w.repo.UpdateStatus(ctx, n.ID, domain.StatusUpdate{
			Status: domain.StatusPending, Attempts: n.Attempts, LastError: n.LastError, At: now,
		}); err != nil {
			return count, fmt.Errorf("touch notification %s: %w", n.ID, err)
		}
		if err := w.queue.Enqueue(ctx, queue.Job{NotificationID: n.ID, Attempt: n.Attempts, EnqueuedAt: now}); err != nil {
			return count, fmt.Errorf("enqueue notification %s: %w", n.ID, err)
		}
		count++
	}
	if count > 0 {
		w.log.WithField("count", count).Info("notification worker: re-enqueued stale notifications")
	}
	return count, nil
}

func (w *Worker) deliver(ctx context.Context, n *domain.Notification) error {
	switch n.Type {
	case domain.TypeEmail:
		if w.email == nil {
			return errors.New("email delivery is not configured")
		}
		return w.email.SendEmail(ctx, n.Channel, n.Subject, n.Message)
	case domain.TypeSMS:
		if w.sms == nil {
			return errors.New("sms delivery is not configured")
		}
		return w.sms.Send(ctx, n.Channel, n.Message)
	default:
		return fmt.Errorf("unsupported notification type %q", n.Type)
	}
}
