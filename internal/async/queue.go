package async

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-ledger/internal/common"
	"github.com/joseph-ayodele/invoice-ledger/internal/metrics"
	"github.com/joseph-ayodele/invoice-ledger/internal/pipeline"
)

// ErrQueueClosed is returned by Enqueue after Shutdown.
var ErrQueueClosed = common.NewAppError("QUEUE_CLOSED", "queue is shutting down", common.ErrInput)

// Job is one document to run through extract, parse and score.
type Job struct {
	ID          uuid.UUID
	Name        string
	Content     []byte
	SubmittedAt time.Time
}

// Result is what a worker reports for a finished job.
type Result struct {
	JobID    uuid.UUID
	Name     string
	Snapshot pipeline.Snapshot
	Err      error
	Elapsed  time.Duration
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) (uuid.UUID, error)
	Shutdown(ctx context.Context)
}

// NewOrchestrator builds the orchestrator a single job runs on. Jobs never share one.
type NewOrchestrator func() *pipeline.Orchestrator

type ProcessorQueue struct {
	newOrch  NewOrchestrator
	logger   *slog.Logger
	metrics  *metrics.Metrics
	onResult func(Result)
	workers  int
	timeout  time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
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

func WithMetrics(m *metrics.Metrics) Option {
	return func(q *ProcessorQueue) { q.metrics = m }
}

// WithResults registers a callback invoked from the worker goroutine after every job.
func WithResults(fn func(Result)) Option {
	return func(q *ProcessorQueue) { q.onResult = fn }
}

// FromConfig applies the Queue section of the configuration.
func FromConfig(cfg common.QueueConfig) []Option {
	return []Option{
		WithWorkers(cfg.Workers),
		WithQueueSize(cfg.Size),
		WithProcessTimeout(cfg.ProcessTimeout),
	}
}

func NewProcessorQueue(newOrch NewOrchestrator, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		newOrch: newOrch,
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
				q.logger.Info("batch.worker.started", "worker_id", workerID)

				for job := range q.ch {
					if q.metrics != nil {
						q.metrics.QueueDepth.Dec()
					}
					res := q.process(job)
					q.metrics.JobDone(res.Err, res.Elapsed)

					if res.Err != nil {
						q.logger.Error("batch.job.failed", "worker_id", workerID, "job_id", job.ID, "name", job.Name,
							"status", res.Snapshot.Status, "error", res.Err)
					} else {
						q.logger.Info("batch.job.ok", "worker_id", workerID, "job_id", job.ID, "name", job.Name,
							"status", res.Snapshot.Status, "elapsed_ms", res.Elapsed.Milliseconds())
					}
					if q.onResult != nil {
						q.onResult(res)
					}
				}

				q.logger.Info("batch.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

// process drives a fresh orchestrator to Scored and returns its final snapshot.
func (q *ProcessorQueue) process(job Job) Result {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	o := q.newOrch()
	defer o.Close()

	err := func() error {
		o.Upload(ctx, job.Name, "", job.Content)
		if _, err := o.Extract(ctx); err != nil {
			return err
		}
		if _, err := o.Parse(ctx); err != nil {
			return err
		}
		_, err := o.Score(ctx)
		return err
	}()
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = common.WrapError(err, "batch job timed out")
	}

	return Result{
		JobID:    job.ID,
		Name:     job.Name,
		Snapshot: o.Snapshot(),
		Err:      err,
		Elapsed:  time.Since(start),
	}
}

// Enqueue blocks while the queue is full until ctx is done.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) (uuid.UUID, error) {
	if len(job.Content) == 0 {
		return uuid.Nil, common.InputErrorf("job %q has no content", job.Name)
	}
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now().UTC()
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("batch.enqueue.closed", "job_id", job.ID, "name", job.Name)
		return uuid.Nil, ErrQueueClosed
	}
	if q.metrics != nil {
		q.metrics.QueueDepth.Inc()
	}
	select {
	case q.ch <- job:
	default:
		q.logger.Warn("batch.enqueue.backpressure", "job_id", job.ID, "name", job.Name)
		select {
		case q.ch <- job:
		case <-ctx.Done():
			if q.metrics != nil {
				q.metrics.QueueDepth.Dec()
			}
			return uuid.Nil, ctx.Err()
		}
	}
	q.logger.Info("batch.enqueue.ok", "job_id", job.ID, "name", job.Name, "bytes", len(job.Content))
	return job.ID, nil
}

// Shutdown stops accepting jobs and waits for the workers to drain the queue or ctx to end.
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
		q.logger.Warn("batch.shutdown.interrupted")
	case <-done:
		q.logger.Info("batch.shutdown.drained")
	}
}
