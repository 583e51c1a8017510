package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/pdenham/microblog/internal/api/shared"
	"github.com/pdenham/microblog/internal/platform/postgres"
	"github.com/pdenham/microblog/internal/search"
)

// Search paging bounds.
const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// SearchResponse represents the response data for a search query. When the
// index is unavailable the result degrades to empty with a warning instead
// of failing the request.
type SearchResponse struct {
	Posts   []PostResponse `json:"posts"`
	Total   uint64         `json:"total"`
	Page    int            `json:"page"`
	Warning string         `json:"warning,omitempty"`
}

// SearchHandler handles full-text search requests.
type SearchHandler struct {
	posts *postgres.PostStore
	index search.Client
}

// NewSearchHandler creates a new SearchHandler.
func NewSearchHandler(posts *postgres.PostStore, index search.Client) *SearchHandler {
	return &SearchHandler{posts: posts, index: index}
}

// Search handles GET /api/search?q=&page=&page_size= requests.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Missing query parameter q")
		return
	}

	page := queryInt(r, "page", 1)
	if page < 1 {
		page = 1
	}
	pageSize := queryInt(r, "page_size", defaultPageSize)
	if pageSize < 1 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}

	posts, total, err := h.posts.Search(r.Context(), h.index, query, page, pageSize)
	if errors.Is(err, search.ErrIndexUnavailable) {
		slog.Warn("search degraded, index unavailable", "error", err)
		shared.RespondWithJSON(w, r, http.StatusOK, SearchResponse{
			Posts:   []PostResponse{},
			Page:    page,
			Warning: "search is temporarily unavailable",
		})
		return
	}
	if err != nil {
		slog.Error("search failed", "error", err)
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Search failed")
		return
	}

	results := make([]PostResponse, 0, len(posts))
	for _, post := range posts {
		results = append(results, postToResponse(post))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, SearchResponse{
		Posts: results,
		Total: total,
		Page:  page,
	})
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
