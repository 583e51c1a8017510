package postgres

import (
	"context"
	"fmt"

	"github.com/pdenham/microblog/internal/domain"
	"github.com/pdenham/microblog/internal/store"
)

// NotificationStore implements notify.Store against PostgreSQL.
type NotificationStore struct {
	db store.DBTX
}

// NewNotificationStore creates a NotificationStore using the given database
// handle.
func NewNotificationStore(db store.DBTX) *NotificationStore {
	return &NotificationStore{db: db}
}

// DeleteByName removes all events of one name for a user.
func (s *NotificationStore) DeleteByName(ctx context.Context, userID int64, name string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE user_id = $1 AND name = $2`,
		userID, name)
	if err != nil {
		return MapError(err)
	}
	return nil
}

// Insert appends an event and fills in its assigned id. The stored timestamp
// is floored at the user's current maximum plus a small increment, so writers
// on different hosts cannot land two events on the same timestamp; the final
// value is written back to n.Timestamp.
func (s *NotificationStore) Insert(ctx context.Context, n *domain.Notification) error {
	query := `
		INSERT INTO notifications (name, user_id, ts, payload)
		SELECT $1, $2,
		       GREATEST(
		           $3::double precision,
		           (SELECT COALESCE(MAX(ts), 0) + 1e-6 FROM notifications WHERE user_id = $2)
		       ),
		       $4
		RETURNING id, ts
	`
	err := s.db.QueryRowContext(ctx, query,
		n.Name,
		n.UserID,
		n.Timestamp,
		[]byte(n.Payload),
	).Scan(&n.ID, &n.Timestamp)
	if err != nil {
		return MapError(err)
	}
	return nil
}

// ListSince returns the user's events newer than since, ascending by
// timestamp with id as the tiebreak.
func (s *NotificationStore) ListSince(ctx context.Context, userID int64, since float64) ([]*domain.Notification, error) {
	query := `
		SELECT id, name, user_id, ts, payload
		FROM notifications
		WHERE user_id = $1 AND ts > $2
		ORDER BY ts ASC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, userID, since)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var notifications []*domain.Notification
	for rows.Next() {
		var n domain.Notification
		var payload []byte
		if err := rows.Scan(&n.ID, &n.Name, &n.UserID, &n.Timestamp, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan notification row: %w", err)
		}
		n.Payload = payload
		notifications = append(notifications, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notification rows: %w", err)
	}
	return notifications, nil
}

// MaxTimestamp returns the user's current maximum event timestamp, or 0 for
// an empty feed.
func (s *NotificationStore) MaxTimestamp(ctx context.Context, userID int64) (float64, error) {
	var maxTS float64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(ts), 0) FROM notifications WHERE user_id = $1`,
		userID).Scan(&maxTS)
	if err != nil {
		return 0, MapError(err)
	}
	return maxTS, nil
}
