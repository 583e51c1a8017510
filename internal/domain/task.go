package domain

import (
	"errors"
	"time"
)

// Common validation errors
var (
	ErrEmptyTaskID   = errors.New("task ID cannot be empty")
	ErrEmptyTaskName = errors.New("task name cannot be empty")
	ErrEmptyTaskUser = errors.New("task must have an owning user")
)

// TaskRecord is the durable per-user record of a launched background job.
// Its ID is the broker's job identifier, treated as an opaque string. Live
// progress is not stored here: it lives in the broker's job metadata so the
// worker and the web process never contend on this row.
type TaskRecord struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	UserID      int64     `json:"user_id"`
	Complete    bool      `json:"complete"`
	CreatedAt   time.Time `json:"created_at"`
}

// Validate checks if the TaskRecord has valid data.
func (t *TaskRecord) Validate() error {
	if t.ID == "" {
		return ErrEmptyTaskID
	}
	if t.Name == "" {
		return ErrEmptyTaskName
	}
	if t.UserID == 0 {
		return ErrEmptyTaskUser
	}
	return nil
}
