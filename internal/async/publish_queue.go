package async

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/order-analyzer/internal/events"
)

// ErrQueueClosed is returned by Enqueue after Shutdown has started.
var ErrQueueClosed = errors.New("queue is shutting down")

// PublishQueue hands events to a Publisher from a fixed pool of workers so
// that request handlers never wait on the broker.
type PublishQueue struct {
	pub     events.Publisher
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*PublishQueue)

func WithWorkers(n int) Option {
	return func(q *PublishQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(q *PublishQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}
func WithPublishTimeout(d time.Duration) Option {
	return func(q *PublishQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewPublishQueue(pub events.Publisher, logger *slog.Logger, opts ...Option) *PublishQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &PublishQueue{
		pub:     pub,
		logger:  logger,
		workers: 2,
		timeout: 10 * time.Second,
		ch:      make(chan Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *PublishQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("async.worker.started", "worker_id", workerID)

				for job := range q.ch {
					ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
					err := q.pub.Publish(ctx, job.Event)
					cancel()

					if err != nil {
						q.logger.Error("async.publish.failed",
							"worker_id", workerID,
							"type", job.Event.Type,
							"run_id", job.Event.RunID,
							"req_id", job.TraceID,
							"error", err,
						)
					} else {
						q.logger.Debug("async.publish.ok",
							"worker_id", workerID,
							"type", job.Event.Type,
							"run_id", job.Event.RunID,
							"queued_ms", time.Since(job.SubmittedAt).Milliseconds(),
						)
					}
				}

				q.logger.Debug("async.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

// Enqueue waits for room in the buffer until ctx is done.
func (q *PublishQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("async.enqueue.closed", "type", job.Event.Type, "run_id", job.Event.RunID)
		return ErrQueueClosed
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	select {
	case q.ch <- job:
		return nil
	default:
	}
	q.logger.Warn("async.enqueue.backpressure", "type", job.Event.Type, "run_id", job.Event.RunID)
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting jobs and waits for queued ones to be published,
// or for ctx to end.
func (q *PublishQueue) Shutdown(ctx context.Context) {
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
		q.logger.Warn("async.shutdown.interrupted", "error", ctx.Err())
	case <-done:
		q.logger.Info("async.shutdown.drained")
	}
}
