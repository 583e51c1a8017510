package api

import (
	"context"
	"database/sql"
	"errors"
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

// CreatePostRequest represents the request body for creating a post.
type CreatePostRequest struct {
	Body string `json:"body" validate:"required,min=1,max=280"`
}

// PostResponse represents the response data for a post.
type PostResponse struct {
	ID        int64     `json:"id"`
	Body      string    `json:"body"`
	UserID    int64     `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

// PostHandler handles post-related HTTP requests. Writes run inside a
// session so the commit hook propagates them to the search index.
type PostHandler struct {
	db        *sql.DB
	posts     *postgres.PostStore
	hook      store.CommitHook
	validator *validator.Validate
}

// NewPostHandler creates a new PostHandler.
func NewPostHandler(db *sql.DB, posts *postgres.PostStore, hook store.CommitHook) *PostHandler {
	return &PostHandler{
		db:        db,
		posts:     posts,
		hook:      hook,
		validator: validator.New(),
	}
}

// CreatePost handles POST /api/posts requests.
func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.UserID(r.Context())
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "User ID not found")
		return
	}

	var req CreatePostRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	post, err := domain.NewPost(userID, req.Body)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	err = store.RunInSession(r.Context(), h.db, h.hook, func(ctx context.Context, sess *store.Session) error {
		return h.posts.WithSession(sess).Create(ctx, post)
	})
	if err != nil {
		slog.Error("failed to create post", "error", err, "user_id", userID)
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to create post")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, postToResponse(post))
}

// DeletePost handles DELETE /api/posts/{id} requests.
func (h *PostHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.UserID(r.Context())
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "User ID not found")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid post id")
		return
	}

	post, err := h.posts.GetByID(r.Context(), id)
	if store.IsNotFoundError(err) {
		shared.RespondWithError(w, r, http.StatusNotFound, "Post not found")
		return
	}
	if err != nil {
		slog.Error("failed to load post", "error", err, "post_id", id)
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to delete post")
		return
	}
	if post.UserID != userID {
		shared.RespondWithError(w, r, http.StatusForbidden, "Not your post")
		return
	}

	err = store.RunInSession(r.Context(), h.db, h.hook, func(ctx context.Context, sess *store.Session) error {
		return h.posts.WithSession(sess).Delete(ctx, post)
	})
	if err != nil && !errors.Is(err, store.ErrPostNotFound) {
		slog.Error("failed to delete post", "error", err, "post_id", id)
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to delete post")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func postToResponse(post *domain.Post) PostResponse {
	return PostResponse{
		ID:        post.ID,
		Body:      post.Body,
		UserID:    post.UserID,
		Timestamp: post.Timestamp,
	}
}
