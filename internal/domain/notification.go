package domain

import "encoding/json"

// Well-known notification event names.
const (
	// NotificationTaskProgress carries {task_id, progress} for a running job.
	NotificationTaskProgress = "task_progress"

	// NotificationUnreadMessageCount carries the current unread DM count.
	NotificationUnreadMessageCount = "unread_message_count"
)

// Notification is one event in a user's durable, timestamp-ordered feed.
// Counter-style event names use replace-on-name semantics: enqueuing a new
// event deletes all prior events of the same name for that user, so the feed
// never accumulates stale snapshots. The timestamp is a wall-clock float,
// strictly increasing per user (the feed service breaks clock collisions).
type Notification struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	UserID    int64           `json:"user_id"`
	Timestamp float64         `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// UnmarshalPayload decodes the notification payload into the provided value.
func (n *Notification) UnmarshalPayload(v any) error {
	return json.Unmarshal(n.Payload, v)
}
