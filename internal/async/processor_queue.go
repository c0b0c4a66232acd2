package async

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/receiptscan/receiptscan/internal/common"
	"github.com/receiptscan/receiptscan/internal/entity"
)

// FileProcessor is the part of the pipeline the queue needs.
type FileProcessor interface {
	ProcessPath(ctx context.Context, path string) *entity.ProcessingResult
}

// ProcessorQueue fans receipt files out to a fixed set of workers.
type ProcessorQueue struct {
	proc     FileProcessor
	onResult func(Job, *entity.ProcessingResult)
	logger   *slog.Logger
	workers  int
	timeout  time.Duration
	jobID    string

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool

	processed atomic.Int64
	failed    atomic.Int64
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

// WithResultHandler registers a callback invoked after every job. It runs on
// the worker goroutine that processed the job, so handlers must be safe for
// concurrent use.
func WithResultHandler(fn func(Job, *entity.ProcessingResult)) Option {
	return func(q *ProcessorQueue) { q.onResult = fn }
}

// WithJobID tags every worker context with a batch job ID so downstream logs
// can be correlated.
func WithJobID(id string) Option {
	return func(q *ProcessorQueue) { q.jobID = id }
}

func NewProcessorQueue(proc FileProcessor, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		proc:    proc,
		logger:  logger,
		workers: 4,
		timeout: 3 * time.Minute,
		ch:      make(chan Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("worker started", "worker_id", workerID)

				for job := range q.ch {
					q.runJob(workerID, job)
				}

				q.logger.Debug("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

// runJob processes one file. A panic in the pipeline takes down only this
// job, not the worker.
func (q *ProcessorQueue) runJob(workerID int, job Job) {
	defer func() {
		if r := recover(); r != nil {
			q.failed.Add(1)
			q.logger.Error("panic while processing file",
				"worker_id", workerID, "path", job.Path, "panic", r)
		}
	}()

	base := common.WithSourceFile(context.Background(), job.Path)
	if q.jobID != "" {
		base = common.WithJobID(base, q.jobID)
	}
	ctx, cancel := context.WithTimeout(base, q.timeout)
	result := q.proc.ProcessPath(ctx, job.Path)
	cancel()

	if result.Success {
		q.processed.Add(1)
		q.logger.Info("file processed",
			"worker_id", workerID, "path", job.Path, "vendor", result.Fields.Vendor)
	} else {
		q.failed.Add(1)
		q.logger.Error("file processing failed",
			"worker_id", workerID, "path", job.Path, "reason", result.FailureReason)
	}
	if q.onResult != nil {
		q.onResult(job, result)
	}
}

// Enqueue submits a file for processing. When the buffer is full the send
// blocks, which is the backpressure batch callers want.
func (q *ProcessorQueue) Enqueue(_ context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.ch <- job:
	default:
		q.logger.Warn("queue full, applying backpressure", "path", job.Path)
		q.ch <- job
	}
	return nil
}

// Shutdown closes intake and waits for the workers to drain the queue, or
// for ctx to expire.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
}

// Stats reports how many jobs finished since the queue started.
func (q *ProcessorQueue) Stats() (processed, failed int64) {
	return q.processed.Load(), q.failed.Load()
}
