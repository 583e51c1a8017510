package api

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pdenham/microblog/internal/api/shared"
	"github.com/pdenham/microblog/internal/domain"
	"github.com/pdenham/microblog/internal/job"
	"github.com/pdenham/microblog/internal/store"
)

// LaunchTaskRequest represents the request body for launching a task.
type LaunchTaskRequest struct {
	Description string `json:"description"`
}

// TaskResponse represents the response data for a task record, including the
// live progress read from the broker.
type TaskResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Complete    bool      `json:"complete"`
	Progress    int       `json:"progress"`
	CreatedAt   time.Time `json:"created_at"`
}

// TaskHandler handles background task HTTP requests.
type TaskHandler struct {
	db       *sql.DB
	tasks    *job.Service
	registry *job.Registry
	hook     store.CommitHook
}

// NewTaskHandler creates a new TaskHandler. The registry is used to reject
// unknown job names before anything is enqueued.
func NewTaskHandler(db *sql.DB, tasks *job.Service, registry *job.Registry, hook store.CommitHook) *TaskHandler {
	return &TaskHandler{
		db:       db,
		tasks:    tasks,
		registry: registry,
		hook:     hook,
	}
}

// LaunchTask handles POST /api/tasks/{name} requests.
func (h *TaskHandler) LaunchTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.UserID(r.Context())
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "User ID not found")
		return
	}

	name := chi.URLParam(r, "name")
	if _, err := h.registry.Resolve(name); err != nil {
		shared.RespondWithError(w, r, http.StatusNotFound, "Unknown task name")
		return
	}

	var req LaunchTaskRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	var record *domain.TaskRecord
	err := store.RunInSession(r.Context(), h.db, h.hook, func(ctx context.Context, sess *store.Session) error {
		var launchErr error
		record, launchErr = h.tasks.LaunchTask(ctx, sess, userID, name, req.Description, nil)
		return launchErr
	})
	switch {
	case errors.Is(err, store.ErrTaskInProgress) || store.IsDuplicateError(err):
		shared.RespondWithError(w, r, http.StatusConflict, "A task of this name is already in progress")
		return
	case errors.Is(err, job.ErrBrokerUnavailable):
		slog.Error("task launch failed, broker unavailable", "error", err, "task_name", name)
		shared.RespondWithError(w, r, http.StatusServiceUnavailable, "Task queue unavailable")
		return
	case err != nil:
		slog.Error("task launch failed", "error", err, "task_name", name)
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to launch task")
		return
	}

	// Processing happens asynchronously.
	shared.RespondWithJSON(w, r, http.StatusAccepted, taskToResponse(record, 0))
}

// ListTasks handles GET /api/tasks requests, returning the user's in-flight
// tasks with their live progress.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.UserID(r.Context())
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "User ID not found")
		return
	}

	records, err := h.tasks.ListTasksInProgress(r.Context(), userID)
	if err != nil {
		slog.Error("failed to list tasks", "error", err, "user_id", userID)
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to list tasks")
		return
	}

	responses := make([]TaskResponse, 0, len(records))
	for _, record := range records {
		progress, err := h.tasks.GetProgress(r.Context(), record)
		if err != nil {
			slog.Error("failed to read task progress", "error", err, "task_id", record.ID)
			shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to read task progress")
			return
		}
		responses = append(responses, taskToResponse(record, progress))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, responses)
}

func taskToResponse(record *domain.TaskRecord, progress int) TaskResponse {
	return TaskResponse{
		ID:          record.ID,
		Name:        record.Name,
		Description: record.Description,
		Complete:    record.Complete,
		Progress:    progress,
		CreatedAt:   record.CreatedAt,
	}
}
