package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pdenham/microblog/internal/api/shared"
	"github.com/pdenham/microblog/internal/domain"
	"github.com/pdenham/microblog/internal/platform/postgres"
	"github.com/pdenham/microblog/internal/store"
)

// CreateUserRequest represents the request body for provisioning a user.
type CreateUserRequest struct {
	Username string `json:"username" validate:"required,min=1,max=64"`
	Email    string `json:"email"    validate:"required,email"`
	AboutMe  string `json:"about_me" validate:"max=140"`
}

// UserResponse represents the response data for a user.
type UserResponse struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	AboutMe   string    `json:"about_me,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// UserHandler handles user provisioning requests. The upstream gateway owns
// accounts and authentication; it mirrors each account into the core so
// posts, tasks, and notifications have a stable identity to hang off.
type UserHandler struct {
	users     *postgres.UserStore
	validator *validator.Validate
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(users *postgres.UserStore) *UserHandler {
	return &UserHandler{
		users:     users,
		validator: validator.New(),
	}
}

// CreateUser handles POST /users requests.
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	user := &domain.User{
		Username: req.Username,
		Email:    req.Email,
		AboutMe:  req.AboutMe,
	}
	err := h.users.Create(r.Context(), user)
	if store.IsDuplicateError(err) {
		shared.RespondWithError(w, r, http.StatusConflict, "Username or email already taken")
		return
	}
	if err != nil {
		slog.Error("failed to create user", "error", err, "username", req.Username)
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to create user")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, userToResponse(user))
}

// GetUser handles GET /users/{id} requests.
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid user id")
		return
	}

	user, err := h.users.GetByID(r.Context(), id)
	if store.IsNotFoundError(err) {
		shared.RespondWithError(w, r, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		slog.Error("failed to load user", "error", err, "user_id", id)
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to load user")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, userToResponse(user))
}

func userToResponse(user *domain.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		AboutMe:   user.AboutMe,
		CreatedAt: user.CreatedAt,
	}
}
