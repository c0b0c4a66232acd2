// Package async runs receipt processing jobs on a bounded worker pool.
package async

import (
	"context"
	"errors"
	"time"
)

// ErrQueueClosed is returned by Enqueue after Shutdown has begun.
var ErrQueueClosed = errors.New("queue is shut down")

// Job is the smallest useful unit. Extend as needed later (retry, trace, etc).
type Job struct {
	Path        string
	SubmittedAt time.Time
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
