// Package worker polls the job store for queued ingestion jobs and drives
// them through the ingestion pipeline one at a time.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/DhruvTemura/second-brain-ai/core"
	"github.com/DhruvTemura/second-brain-ai/storage"
)

// Defaults match a single low-traffic worker process.
const (
	DefaultInterval  = 5 * time.Second
	DefaultBatchSize = 10
)

var (
	// ErrJobRepositoryRequired is returned when a job repository is not provided.
	ErrJobRepositoryRequired = errors.New("job repository required")

	// ErrIngesterRequired is returned when an ingester is not provided.
	ErrIngesterRequired = errors.New("ingester required")
)

// Ingester processes one queued job. *ingestion.Pipeline implements it.
type Ingester interface {
	Ingest(ctx context.Context, job *core.Job) (int, error)
}

// BatchReport summarizes one poll tick.
type BatchReport struct {
	Fetched   int // Queued jobs returned by the store
	Succeeded int // Jobs that ended done
	Failed    int // Jobs that ended failed
	Skipped   int // Jobs claimed by someone else or left queued by shutdown
	Chunks    int // Chunks created by succeeded jobs
}

// Processed returns the number of jobs that reached a terminal state.
func (r BatchReport) Processed() int {
	return r.Succeeded + r.Failed
}

// Worker is a cooperative polling loop.
type Worker struct {
	jobs      storage.JobRepository
	ingester  Ingester
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
}

// Option configures a Worker.
type Option func(*Worker) error

// WithInterval sets the poll interval. Default is 5s.
func WithInterval(interval time.Duration) Option {
	return func(w *Worker) error {
		if interval <= 0 {
			return errors.Join(core.ErrValidation, errors.New("poll interval must be positive"))
		}
		w.interval = interval
		return nil
	}
}

// WithBatchSize sets how many queued jobs are fetched per tick. Default is 10.
func WithBatchSize(size int) Option {
	return func(w *Worker) error {
		if size <= 0 {
			return errors.Join(core.ErrValidation, errors.New("batch size must be positive"))
		}
		w.batchSize = size
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) error {
		w.logger = logger
		return nil
	}
}

// New creates a worker.
func New(jobs storage.JobRepository, ingester Ingester, opts ...Option) (*Worker, error) {
	if jobs == nil {
		return nil, ErrJobRepositoryRequired
	}
	if ingester == nil {
		return nil, ErrIngesterRequired
	}

	w := &Worker{
		jobs:      jobs,
		ingester:  ingester,
		interval:  DefaultInterval,
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		if err := opt(w); err != nil {
			return nil, err
		}
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	w.logger = w.logger.With("component", "worker")
	return w, nil
}

// Run polls until ctx is canceled. The first poll happens immediately.
// Cancellation stops future ticks but lets the in-flight job finish.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started", "interval", w.interval, "batch_size", w.batchSize)

	w.tick(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopped")
			return nil
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *Worker) tick(ctx context.Context) {
	report, err := w.RunOnce(ctx)
	if err != nil {
		w.logger.Error("error polling for jobs", "err", err)
		return
	}
	if report.Fetched > 0 {
		w.logger.Info("batch finished",
			"fetched", report.Fetched,
			"succeeded", report.Succeeded,
			"failed", report.Failed,
			"skipped", report.Skipped,
			"chunks", report.Chunks)
	}
}

// RunOnce fetches one batch of queued jobs and processes them sequentially
// in creation order. Per-job failures are recorded on the job and counted;
// only a failure to fetch the batch is returned.
func (w *Worker) RunOnce(ctx context.Context) (BatchReport, error) {
	var report BatchReport
	if err := ctx.Err(); err != nil {
		return report, err
	}

	pending, err := w.jobs.ListPending(ctx, w.batchSize)
	if err != nil {
		return report, err
	}
	report.Fetched = len(pending)

	for i, job := range pending {
		if ctx.Err() != nil {
			report.Skipped += len(pending) - i
			break
		}

		count, err := w.ingester.Ingest(context.WithoutCancel(ctx), job)
		switch {
		case errors.Is(err, storage.ErrJobNotQueued):
			w.logger.Debug("job already claimed", "job", job.Id)
			report.Skipped++
		case err != nil:
			w.logger.Warn("job failed", "job", job.Id, "err", err)
			report.Failed++
		default:
			report.Succeeded++
			report.Chunks += count
		}
	}
	return report, nil
}
