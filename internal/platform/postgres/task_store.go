package postgres

import (
	"context"
	"fmt"

	"github.com/pdenham/microblog/internal/domain"
	"github.com/pdenham/microblog/internal/job"
	"github.com/pdenham/microblog/internal/platform/logger"
	"github.com/pdenham/microblog/internal/store"
)

// TaskRecordStore implements job.RecordStore against PostgreSQL. Records are
// keyed by the broker's job id; the partial unique index on incomplete rows
// backs the at-most-one-in-flight-per-(user, name) policy.
type TaskRecordStore struct {
	db store.DBTX
}

// NewTaskRecordStore creates a TaskRecordStore using the given database handle.
func NewTaskRecordStore(db store.DBTX) *TaskRecordStore {
	return &TaskRecordStore{db: db}
}

// WithSession returns a TaskRecordStore bound to the session's transaction.
func (s *TaskRecordStore) WithSession(sess *store.Session) job.RecordStore {
	return &TaskRecordStore{db: sess}
}

// Create inserts a task record. A lost launch race surfaces here as a
// duplicate error from the in-flight unique index.
func (s *TaskRecordStore) Create(ctx context.Context, record *domain.TaskRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO task_records (id, name, description, user_id, complete, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query,
		record.ID,
		record.Name,
		record.Description,
		record.UserID,
		record.Complete,
		record.CreatedAt,
	)
	if err != nil {
		logger.FromContext(ctx).Error("failed to create task record",
			"task_id", record.ID,
			"task_name", record.Name,
			"error", err)
		return MapError(err)
	}
	return nil
}

// GetInProgress looks up the incomplete record for (user, name).
func (s *TaskRecordStore) GetInProgress(ctx context.Context, userID int64, name string) (*domain.TaskRecord, error) {
	row := s.db.QueryRowContext(ctx,
		taskSelect+` WHERE user_id = $1 AND name = $2 AND NOT complete`,
		userID, name)
	record, err := scanTaskRecord(row)
	if err != nil {
		return nil, taskNotFound(MapError(err))
	}
	return record, nil
}

// ListInProgress returns all incomplete records for a user, oldest first.
func (s *TaskRecordStore) ListInProgress(ctx context.Context, userID int64) ([]*domain.TaskRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		taskSelect+` WHERE user_id = $1 AND NOT complete ORDER BY created_at ASC`,
		userID)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var records []*domain.TaskRecord
	for rows.Next() {
		record, err := scanTaskRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task record row: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task record rows: %w", err)
	}
	return records, nil
}

// MarkComplete flips the completion flag. Missing or already-complete
// records are a no-op: completion is idempotent from the worker's side.
func (s *TaskRecordStore) MarkComplete(ctx context.Context, jobID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE task_records SET complete = TRUE WHERE id = $1`, jobID)
	if err != nil {
		return MapError(err)
	}
	return nil
}

const taskSelect = `SELECT id, name, description, user_id, complete, created_at FROM task_records`

func scanTaskRecord(row rowScanner) (*domain.TaskRecord, error) {
	var t domain.TaskRecord
	if err := row.Scan(&t.ID, &t.Name, &t.Description, &t.UserID, &t.Complete, &t.CreatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

// taskNotFound narrows a generic not-found to the task-specific sentinel.
func taskNotFound(err error) error {
	if store.IsNotFoundError(err) {
		return store.ErrTaskNotFound
	}
	return err
}
