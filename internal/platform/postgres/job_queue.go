package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pdenham/microblog/internal/job"
	"github.com/pdenham/microblog/internal/store"
)

// Job queue states.
const (
	jobStateQueued    = "queued"
	jobStateRunning   = "running"
	jobStateSucceeded = "succeeded"
	jobStateFailed    = "failed"
)

// JobQueue implements job.Broker on a PostgreSQL table. Claiming uses
// FOR UPDATE SKIP LOCKED so concurrent worker processes never receive the
// same job. Progress lives in the job row itself, which is the broker's
// per-job metadata store.
type JobQueue struct {
	db store.DBTX
}

// NewJobQueue creates a JobQueue using the given database handle.
func NewJobQueue(db store.DBTX) *JobQueue {
	return &JobQueue{db: db}
}

// WithSession returns a JobQueue whose Enqueue joins the session's
// transaction: the queued job and the caller's other writes commit together.
func (q *JobQueue) WithSession(sess *store.Session) job.Broker {
	return &JobQueue{db: sess}
}

// Enqueue inserts a queued job and returns its id.
func (q *JobQueue) Enqueue(ctx context.Context, name string, userID int64, args any) (string, error) {
	data, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("failed to encode job args: %w", err)
	}

	id := uuid.New().String()
	query := `
		INSERT INTO jobs (id, name, user_id, args, state)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := q.db.ExecContext(ctx, query, id, name, userID, data, jobStateQueued); err != nil {
		return "", fmt.Errorf("%w: enqueue %s: %v", job.ErrBrokerUnavailable, name, err)
	}
	return id, nil
}

// Dequeue claims the oldest queued job, moving it to running. Returns
// (nil, nil) when the queue is empty.
func (q *JobQueue) Dequeue(ctx context.Context) (*job.Job, error) {
	query := `
		UPDATE jobs
		SET state = $1, started_at = now()
		WHERE id = (
			SELECT id FROM jobs
			WHERE state = $2
			ORDER BY enqueued_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, name, user_id, args
	`
	var j job.Job
	var args []byte
	err := q.db.QueryRowContext(ctx, query, jobStateRunning, jobStateQueued).
		Scan(&j.ID, &j.Name, &j.UserID, &args)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, MapError(err)
	}
	j.Args = json.RawMessage(args)
	return &j, nil
}

// Complete moves a job to its terminal state.
func (q *JobQueue) Complete(ctx context.Context, jobID string, jobErr error) error {
	state := jobStateSucceeded
	errMsg := ""
	if jobErr != nil {
		state = jobStateFailed
		errMsg = jobErr.Error()
	}

	query := `
		UPDATE jobs
		SET state = $1, error = $2, finished_at = now()
		WHERE id = $3
	`
	result, err := q.db.ExecContext(ctx, query, state, errMsg, jobID)
	if err != nil {
		return MapError(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", job.ErrJobNotFound, jobID)
	}
	return nil
}

// SetProgress writes the job's live progress metadata.
func (q *JobQueue) SetProgress(ctx context.Context, jobID string, progress int) error {
	result, err := q.db.ExecContext(ctx,
		`UPDATE jobs SET progress = $1 WHERE id = $2`, progress, jobID)
	if err != nil {
		return MapError(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", job.ErrJobNotFound, jobID)
	}
	return nil
}

// staleJobError is recorded on jobs closed out by the stale sweep.
const staleJobError = "abandoned: worker lost before completion"

// FailStale closes out running jobs whose claim is older than olderThan.
// The state transition is atomic, so concurrent sweepers never return the
// same job id twice.
func (q *JobQueue) FailStale(ctx context.Context, olderThan time.Duration) ([]string, error) {
	cutoff := time.Now().Add(-olderThan)
	query := `
		UPDATE jobs
		SET state = $1, error = $2, progress = 100, finished_at = now()
		WHERE state = $3 AND started_at < $4
		RETURNING id
	`
	rows, err := q.db.QueryContext(ctx, query, jobStateFailed, staleJobError, jobStateRunning, cutoff)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan stale job id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stale job rows: %w", err)
	}
	return ids, nil
}

// GetProgress reads the job's live progress metadata.
func (q *JobQueue) GetProgress(ctx context.Context, jobID string) (int, error) {
	var progress int
	err := q.db.QueryRowContext(ctx,
		`SELECT progress FROM jobs WHERE id = $1`, jobID).Scan(&progress)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", job.ErrJobNotFound, jobID)
	}
	if err != nil {
		return 0, MapError(err)
	}
	return progress, nil
}
