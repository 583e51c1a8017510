package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/pdenham/microblog/internal/api/shared"
	"github.com/pdenham/microblog/internal/notify"
)

// NotificationResponse represents one event in the notification feed.
type NotificationResponse struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Timestamp float64         `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// NotificationHandler serves the polling endpoint of the notification feed.
type NotificationHandler struct {
	feed *notify.Service
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(feed *notify.Service) *NotificationHandler {
	return &NotificationHandler{feed: feed}
}

// Poll handles GET /api/notifications?since= requests. Clients pass the max
// timestamp they have seen; only strictly newer events are returned, in
// ascending timestamp order.
func (h *NotificationHandler) Poll(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.UserID(r.Context())
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "User ID not found")
		return
	}

	since := 0.0
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid since parameter")
			return
		}
		since = parsed
	}

	events, err := h.feed.Poll(r.Context(), userID, since)
	if err != nil {
		slog.Error("failed to poll notifications", "error", err, "user_id", userID)
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to poll notifications")
		return
	}

	responses := make([]NotificationResponse, 0, len(events))
	for _, n := range events {
		responses = append(responses, NotificationResponse{
			ID:        n.ID,
			Name:      n.Name,
			Timestamp: n.Timestamp,
			Payload:   n.Payload,
		})
	}
	shared.RespondWithJSON(w, r, http.StatusOK, responses)
}
