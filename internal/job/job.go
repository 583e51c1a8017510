// Package job provides background task execution: a durable broker queue
// abstraction, a registry of named job handlers, the launch/progress service
// used by the web process, and the worker runtime that executes jobs.
package job

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/pdenham/microblog/internal/domain"
)

// Error kinds for the task subsystem.
var (
	// ErrBrokerUnavailable indicates that the broker queue could not accept
	// an enqueue. It is fatal to LaunchTask: no task record is created.
	ErrBrokerUnavailable = errors.New("task broker unavailable")

	// ErrJobNotFound indicates that a job id no longer exists in the broker
	// (expired, restarted, or garbage-collected). Progress queries fail open
	// to 100 instead of surfacing it.
	ErrJobNotFound = errors.New("job not found")

	// ErrUnknownJob indicates that no handler is registered for a job name.
	ErrUnknownJob = errors.New("unknown job name")
)

// Job is one unit of queued work as delivered to a worker.
type Job struct {
	ID     string
	Name   string
	UserID int64
	Args   json.RawMessage
}

// Func is a job handler. It receives the dequeued job wrapped in an
// ActiveJob, which is its only channel for reporting progress while running.
type Func func(ctx context.Context, j *ActiveJob) error

// Notifier delivers events to a user's notification feed. Implemented by
// notify.Service.
type Notifier interface {
	Notify(ctx context.Context, userID int64, name string, payload any) (*domain.Notification, error)
}

// ActiveJob is a Job being executed by the worker runtime. SetProgress
// writes the live progress value into the broker's job metadata and emits a
// task_progress notification for the owning user.
type ActiveJob struct {
	Job

	broker   Broker
	notifier Notifier
	logger   *slog.Logger
}

// UnmarshalArgs decodes the job's stored arguments into the provided value.
func (j *ActiveJob) UnmarshalArgs(v any) error {
	if len(j.Args) == 0 {
		return nil
	}
	return json.Unmarshal(j.Args, v)
}

// Logger returns a logger scoped to this job.
func (j *ActiveJob) Logger() *slog.Logger {
	return j.logger
}

// SetProgress records the job's progress (0-100) in the broker metadata and
// notifies the owning user. By convention progress is monotonically
// non-decreasing; this is not enforced. A notification failure is logged but
// does not fail the job: the broker metadata remains authoritative.
func (j *ActiveJob) SetProgress(ctx context.Context, progress int) error {
	if err := j.broker.SetProgress(ctx, j.ID, progress); err != nil {
		return err
	}
	if j.notifier != nil {
		_, err := j.notifier.Notify(ctx, j.UserID, domain.NotificationTaskProgress, map[string]any{
			"task_id":  j.ID,
			"progress": progress,
		})
		if err != nil {
			j.logger.Warn("failed to emit progress notification",
				"job_id", j.ID,
				"progress", progress,
				"error", err)
		}
	}
	return nil
}
