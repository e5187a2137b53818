package ports

import (
	"context"
	"time"
)

// JobQueue is the contract with the background task system: enqueue
// returns as soon as the job is durably queued; the job executes
// at-least-once with automatic retry on transient failure and permanent
// discard on non-retryable deserialization errors.
type JobQueue interface {
	// Enqueue queues a job for immediate execution.
	Enqueue(ctx context.Context, jobType string, payload interface{}) error

	// EnqueueIn queues a job for execution after delay.
	EnqueueIn(ctx context.Context, jobType string, payload interface{}, delay time.Duration) error
}
