package async

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/receiptscan/receiptscan/internal/entity"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeProcessor struct {
	block chan struct{} // when set, ProcessPath waits on it

	mu   sync.Mutex
	seen []string
}

func (f *fakeProcessor) ProcessPath(_ context.Context, path string) *entity.ProcessingResult {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	f.seen = append(f.seen, path)
	f.mu.Unlock()

	if strings.Contains(path, "bad") {
		return entity.FailureResult("no text extracted", time.Millisecond)
	}
	return entity.SuccessResult(&entity.ExtractedFields{Vendor: "Walmart"}, "TOTAL 1.00", 1.0, nil, time.Millisecond)
}

func (f *fakeProcessor) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seen)
}

func TestQueueProcessesAllJobs(t *testing.T) {
	fp := &fakeProcessor{}

	var (
		mu      sync.Mutex
		results []*entity.ProcessingResult
	)
	q := NewProcessorQueue(fp, testLogger(),
		WithWorkers(3),
		WithQueueSize(2), // small buffer so the backpressure path runs too
		WithResultHandler(func(_ Job, r *entity.ProcessingResult) {
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
		}),
	)

	for i := 1; i <= 20; i++ {
		name := fmt.Sprintf("receipt-%02d.txt", i)
		if i%4 == 0 {
			name = fmt.Sprintf("bad-%02d.txt", i)
		}
		if err := q.Enqueue(context.Background(), Job{Path: name, SubmittedAt: time.Now()}); err != nil {
			t.Fatalf("Enqueue(%s) error = %v", name, err)
		}
	}
	q.Shutdown(context.Background())

	if got := fp.count(); got != 20 {
		t.Errorf("processor saw %d jobs, want 20", got)
	}
	if len(results) != 20 {
		t.Errorf("handler saw %d results, want 20", len(results))
	}
	processed, failed := q.Stats()
	if processed != 15 || failed != 5 {
		t.Errorf("Stats() = %d processed, %d failed, want 15/5", processed, failed)
	}
}

type panickyProcessor struct{ fakeProcessor }

func (p *panickyProcessor) ProcessPath(ctx context.Context, path string) *entity.ProcessingResult {
	if strings.Contains(path, "boom") {
		panic("corrupt page tree")
	}
	return p.fakeProcessor.ProcessPath(ctx, path)
}

func TestWorkerSurvivesPanic(t *testing.T) {
	fp := &panickyProcessor{}
	q := NewProcessorQueue(fp, testLogger(), WithWorkers(1))

	for _, path := range []string{"ok-1.txt", "boom.pdf", "ok-2.txt"} {
		if err := q.Enqueue(context.Background(), Job{Path: path}); err != nil {
			t.Fatalf("Enqueue(%s) error = %v", path, err)
		}
	}
	q.Shutdown(context.Background())

	processed, failed := q.Stats()
	if processed != 2 || failed != 1 {
		t.Errorf("Stats() = %d processed, %d failed, want 2/1", processed, failed)
	}
}

func TestEnqueueAfterShutdown(t *testing.T) {
	q := NewProcessorQueue(&fakeProcessor{}, testLogger(), WithWorkers(1))
	q.Shutdown(context.Background())

	err := q.Enqueue(context.Background(), Job{Path: "late.txt"})
	if !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("Enqueue() error = %v, want ErrQueueClosed", err)
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	q := NewProcessorQueue(&fakeProcessor{}, testLogger(), WithWorkers(1))
	q.Shutdown(context.Background())
	q.Shutdown(context.Background()) // second call must not panic on the closed channel
}

func TestShutdownHonorsContext(t *testing.T) {
	release := make(chan struct{})
	fp := &fakeProcessor{block: release}
	q := NewProcessorQueue(fp, testLogger(), WithWorkers(1), WithQueueSize(4))

	for i := 0; i < 3; i++ {
		if err := q.Enqueue(context.Background(), Job{Path: fmt.Sprintf("slow-%d.txt", i)}); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		q.Shutdown(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Shutdown() did not give up when the context expired")
	}

	close(release) // let the worker drain so the test leaves nothing running
}

func TestOptionsIgnoreNonPositiveValues(t *testing.T) {
	q := NewProcessorQueue(&fakeProcessor{}, testLogger(),
		WithWorkers(0), WithQueueSize(-1), WithProcessTimeout(0))
	defer q.Shutdown(context.Background())

	if q.workers != 4 {
		t.Errorf("workers = %d, want default 4", q.workers)
	}
	if cap(q.ch) != 256 {
		t.Errorf("queue size = %d, want default 256", cap(q.ch))
	}
	if q.timeout != 3*time.Minute {
		t.Errorf("timeout = %v, want default 3m", q.timeout)
	}
}
