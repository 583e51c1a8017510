package job

import (
	"context"
	"time"

	"github.com/pdenham/microblog/internal/domain"
	"github.com/pdenham/microblog/internal/store"
)

// Broker is the durable queue and per-job metadata store shared by the web
// process and the worker processes. Jobs are delivered to exactly one worker
// (competing consumers); progress is an arbitrary integer metadata field
// keyed by job id.
type Broker interface {
	// Enqueue adds a named job with the given owner and arguments to the
	// queue, returning the broker's opaque job id. Failures are reported as
	// ErrBrokerUnavailable.
	Enqueue(ctx context.Context, name string, userID int64, args any) (string, error)

	// Dequeue claims the oldest queued job for this consumer, transitioning
	// it to running. Returns (nil, nil) when the queue is empty.
	Dequeue(ctx context.Context) (*Job, error)

	// Complete moves a running job to its terminal state. A non-nil jobErr
	// records the job as failed; either way the job is done.
	Complete(ctx context.Context, jobID string, jobErr error) error

	// SetProgress writes the live progress value (0-100) into the job's
	// metadata.
	SetProgress(ctx context.Context, jobID string, progress int) error

	// GetProgress reads the live progress value for a job. Returns
	// ErrJobNotFound when the broker no longer knows the job id.
	GetProgress(ctx context.Context, jobID string) (int, error)

	// FailStale marks running jobs claimed more than olderThan ago as
	// failed with progress 100 and returns their ids. A worker that dies
	// mid-job never finishes its claim; without this sweep the job would
	// sit in running forever and pollers would see frozen progress.
	FailStale(ctx context.Context, olderThan time.Duration) ([]string, error)

	// WithSession returns a Broker whose Enqueue participates in the given
	// session's transaction, so the enqueue and the caller's other writes
	// become durable together.
	WithSession(sess *store.Session) Broker
}

// RecordStore persists per-user task records, keyed by the broker's job id.
// Implemented by postgres.TaskRecordStore.
type RecordStore interface {
	// Create inserts a task record.
	Create(ctx context.Context, record *domain.TaskRecord) error

	// GetInProgress looks up the incomplete task record for (user, name).
	// Returns store.ErrTaskNotFound when none is outstanding.
	GetInProgress(ctx context.Context, userID int64, name string) (*domain.TaskRecord, error)

	// ListInProgress returns all incomplete task records for a user.
	ListInProgress(ctx context.Context, userID int64) ([]*domain.TaskRecord, error)

	// MarkComplete sets the completion flag for the record with the given
	// job id. Marking an already-complete or missing record is a no-op.
	MarkComplete(ctx context.Context, jobID string) error

	// WithSession returns a RecordStore bound to the session's transaction.
	WithSession(sess *store.Session) RecordStore
}
