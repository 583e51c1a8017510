package job

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// WorkerConfig holds configuration for the worker runtime.
type WorkerConfig struct {
	// Count determines how many concurrent consumer loops poll the queue.
	Count int

	// PollInterval is how long a consumer sleeps when the queue is empty.
	PollInterval time.Duration

	// StaleAfter is how long a job may sit in running before the janitor
	// treats its worker as lost and fails it.
	StaleAfter time.Duration
}

// DefaultWorkerConfig returns a WorkerConfig with reasonable defaults.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		Count:        2,
		PollInterval: time.Second,
		StaleAfter:   30 * time.Minute,
	}
}

// janitorInterval is how often the stale-job sweep runs.
const janitorInterval = time.Minute

// Worker is the long-running runtime that consumes jobs from the broker
// queue and executes them. Multiple Worker processes may consume the same
// queue; the broker delivers each job to exactly one of them.
//
// Execution is at-most-once per enqueue: a job that fails is marked done
// (unsuccessfully) and never retried.
type Worker struct {
	broker   Broker
	registry *Registry
	records  RecordStore
	notifier Notifier
	config   WorkerConfig
	logger   *slog.Logger
}

// NewWorker creates a Worker.
func NewWorker(
	broker Broker,
	registry *Registry,
	records RecordStore,
	notifier Notifier,
	config WorkerConfig,
	logger *slog.Logger,
) *Worker {
	if config.Count <= 0 {
		config.Count = DefaultWorkerConfig().Count
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultWorkerConfig().PollInterval
	}
	if config.StaleAfter <= 0 {
		config.StaleAfter = DefaultWorkerConfig().StaleAfter
	}
	return &Worker{
		broker:   broker,
		registry: registry,
		records:  records,
		notifier: notifier,
		config:   config,
		logger:   logger.With("component", "worker"),
	}
}

// Run starts the consumer loops and blocks until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("starting worker",
		"consumer_count", w.config.Count,
		"jobs", w.registry.Names())

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < w.config.Count; i++ {
		id := i
		g.Go(func() error {
			return w.consume(ctx, id)
		})
	}
	g.Go(func() error {
		return w.janitor(ctx)
	})
	return g.Wait()
}

// janitor periodically fails jobs whose worker died mid-run, so their task
// records close instead of pollers watching frozen progress forever.
func (w *Worker) janitor(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(janitorInterval):
		}
		w.sweepStale(ctx)
	}
}

// sweepStale closes out jobs stuck in running past the staleness threshold
// and marks their task records complete.
func (w *Worker) sweepStale(ctx context.Context) {
	ids, err := w.broker.FailStale(ctx, w.config.StaleAfter)
	if err != nil {
		w.logger.Error("failed to sweep stale jobs", "error", err)
		return
	}
	for _, id := range ids {
		if err := w.records.MarkComplete(ctx, id); err != nil {
			w.logger.Error("failed to mark stale task record complete",
				"job_id", id,
				"error", err)
		}
	}
	if len(ids) > 0 {
		w.logger.Warn("closed out stale jobs", "count", len(ids))
	}
}

// consume polls the queue until the context is cancelled.
func (w *Worker) consume(ctx context.Context, id int) error {
	logger := w.logger.With("consumer_id", id)
	logger.Debug("starting consumer")

	for {
		j, err := w.broker.Dequeue(ctx)
		if err != nil {
			logger.Error("failed to dequeue job", "error", err)
		} else if j != nil {
			w.processJob(ctx, j, logger)
			continue
		}

		select {
		case <-ctx.Done():
			logger.Debug("stopping consumer")
			return ctx.Err()
		case <-time.After(w.config.PollInterval):
		}
	}
}

// processJob executes a single dequeued job. Whatever the outcome, the job
// ends in a terminal broker state with progress 100 and the task record's
// completion flag set: a failed job is still "done", just unsuccessfully.
func (w *Worker) processJob(ctx context.Context, j *Job, logger *slog.Logger) {
	logger = logger.With(
		"job_id", j.ID,
		"job_name", j.Name,
		"user_id", j.UserID,
	)
	logger.Info("processing job")

	active := &ActiveJob{
		Job:      *j,
		broker:   w.broker,
		notifier: w.notifier,
		logger:   logger,
	}

	err := w.execute(ctx, active)
	if err != nil {
		logger.Error("job execution failed", "error", err)
	} else {
		logger.Info("job completed successfully")
	}

	w.finish(ctx, active, err, logger)
}

// execute resolves and invokes the handler, converting panics into errors so
// one bad job cannot take down the consumer loop.
func (w *Worker) execute(ctx context.Context, active *ActiveJob) (err error) {
	fn, err := w.registry.Resolve(active.Name)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("job panicked: %v", p)
		}
	}()
	return fn(ctx, active)
}

// finish forces final progress, marks the broker job terminal, and flips the
// task record's completion flag. Each step is independent: a failure in one
// is logged and the rest still run, so the record never stays open because a
// progress write failed.
func (w *Worker) finish(ctx context.Context, active *ActiveJob, jobErr error, logger *slog.Logger) {
	if err := active.SetProgress(ctx, 100); err != nil {
		logger.Error("failed to record final progress", "error", err)
	}
	if err := w.broker.Complete(ctx, active.ID, jobErr); err != nil {
		logger.Error("failed to complete broker job", "error", err)
	}
	if err := w.records.MarkComplete(ctx, active.ID); err != nil {
		logger.Error("failed to mark task record complete", "error", err)
	}
}
