package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pdenham/microblog/internal/domain"
	"github.com/pdenham/microblog/internal/store"
)

// Service is the synchronous side of the task subsystem: launching jobs,
// checking for in-flight duplicates, and reading live progress. It is what
// route handlers talk to.
type Service struct {
	broker  Broker
	records RecordStore
	logger  *slog.Logger
}

// NewService creates a task Service.
func NewService(broker Broker, records RecordStore, logger *slog.Logger) *Service {
	return &Service{
		broker:  broker,
		records: records,
		logger:  logger.With("component", "task_service"),
	}
}

// LaunchTask enqueues a named job for the user and inserts the task record
// in the caller's transaction, keyed by the job id the broker returned. The
// enqueue happens first; if it fails, the whole operation fails and no
// record is created. Because both writes ride the same session, the record
// and the enqueue become durably visible together or not at all.
//
// The in-progress check is best-effort de-duplication: two concurrent
// launches can both pass it. The partial unique index on incomplete records
// closes that race, surfacing the loser as ErrTaskInProgress at commit.
func (s *Service) LaunchTask(
	ctx context.Context,
	sess *store.Session,
	userID int64,
	name, description string,
	args any,
) (*domain.TaskRecord, error) {
	records := s.records.WithSession(sess)

	if _, err := records.GetInProgress(ctx, userID, name); err == nil {
		return nil, fmt.Errorf("%w: %s", store.ErrTaskInProgress, name)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	jobID, err := s.broker.WithSession(sess).Enqueue(ctx, name, userID, args)
	if err != nil {
		s.logger.Error("failed to enqueue job",
			"job_name", name,
			"user_id", userID,
			"error", err)
		return nil, err
	}

	record := &domain.TaskRecord{
		ID:          jobID,
		Name:        name,
		Description: description,
		UserID:      userID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := record.Validate(); err != nil {
		return nil, err
	}
	if err := records.Create(ctx, record); err != nil {
		return nil, err
	}

	s.logger.Info("launched task",
		"job_id", jobID,
		"job_name", name,
		"user_id", userID)
	return record, nil
}

// GetTaskInProgress returns the outstanding task record for (user, name), or
// nil when none is in flight.
func (s *Service) GetTaskInProgress(ctx context.Context, userID int64, name string) (*domain.TaskRecord, error) {
	record, err := s.records.GetInProgress(ctx, userID, name)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// ListTasksInProgress returns all outstanding task records for a user.
func (s *Service) ListTasksInProgress(ctx context.Context, userID int64) ([]*domain.TaskRecord, error) {
	return s.records.ListInProgress(ctx, userID)
}

// GetProgress reads the live progress for a task record from the broker's
// job metadata. If the broker no longer knows the job (expired, restarted,
// garbage-collected) the task is reported as 100% complete rather than
// erroring, so UI polling never hangs on a missing job.
func (s *Service) GetProgress(ctx context.Context, record *domain.TaskRecord) (int, error) {
	progress, err := s.broker.GetProgress(ctx, record.ID)
	if errors.Is(err, ErrJobNotFound) {
		return 100, nil
	}
	if err != nil {
		return 0, err
	}
	return progress, nil
}
