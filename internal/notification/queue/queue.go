// Package queue carries notification delivery jobs between the API and the worker.
package queue

import (
	"context"
	"time"
)

// Job asks the worker to attempt delivery of one notification. Attempt counts deliveries already tried.
type Job struct {
	NotificationID string    `json:"notificationId"`
	Attempt        int       `json:"attempt"`
	EnqueuedAt     time.Time `json:"enqueuedAt"`
}

// Queue is a delivery queue with delayed re-enqueue for retries.
type Queue interface {
	// Enqueue makes job available immediately.
	Enqueue(ctx context.Context, job Job) error
	// EnqueueAt makes job available at or after at.
	EnqueueAt(ctx context.Context, job Job, at time.Time) error
	// Dequeue waits up to timeout for the next ready job. Returns (nil, nil) on timeout.
	Dequeue(ctx context.Context, timeout time.Duration) (*Job, error)
}
