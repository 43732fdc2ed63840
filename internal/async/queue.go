package async

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/joseph-ayodele/wingspan-tracker/internal/ingest"
)

// ErrQueueClosed is returned by Enqueue after Shutdown.
var ErrQueueClosed = errors.New("queue is shutting down")

// Job is one screenshot waiting to be scanned.
type Job struct {
	Path        string
	SubmittedAt time.Time
}

// Queue scans screenshots as they arrive, e.g. from a directory watcher.
type Queue struct {
	scanner   Scanner
	settings  settings
	onOutcome func(Outcome)

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

// NewQueue starts the workers. onOutcome, when set, is called from worker goroutines.
func NewQueue(scanner Scanner, queueSize int, onOutcome func(Outcome), opts ...Option) *Queue {
	if queueSize <= 0 {
		queueSize = 256
	}
	q := &Queue{
		scanner:   scanner,
		settings:  newSettings(opts),
		onOutcome: onOutcome,
		ch:        make(chan Job, queueSize),
	}
	q.start()
	return q
}

func (q *Queue) start() {
	q.once.Do(func() {
		logger := q.settings.logger
		for i := 0; i < q.settings.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				logger.Debug("queue.worker.started", "worker_id", workerID)

				for job := range q.ch {
					o := q.run(job)
					if q.onOutcome != nil {
						q.onOutcome(o)
					}
				}

				logger.Debug("queue.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *Queue) run(job Job) Outcome {
	f, err := ingest.ReadFile(job.Path, q.settings.maxBytes)
	if err != nil {
		q.settings.logger.Error("queue.file.unreadable", "path", job.Path, "error", err)
		return Outcome{Path: job.Path, Err: err}
	}
	return q.settings.scan(context.Background(), q.scanner, f)
}

// Enqueue blocks while the queue is full, until ctx is done.
func (q *Queue) Enqueue(ctx context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.settings.logger.Warn("queue.enqueue.closed", "path", job.Path)
		return ErrQueueClosed
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	select {
	case q.ch <- job:
		q.settings.logger.Info("queue.enqueue.ok", "path", job.Path)
		return nil
	default:
	}
	q.settings.logger.Warn("queue.enqueue.backpressure", "path", job.Path)
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting jobs and waits for queued ones to finish, or for ctx.
func (q *Queue) Shutdown(ctx context.Context) {
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
		q.settings.logger.Warn("queue.shutdown.interrupted")
	case <-done:
		q.settings.logger.Info("queue.shutdown.drained")
	}
}
