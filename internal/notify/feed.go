// Package notify implements the per-user notification feed: a durable,
// timestamp-ordered event log consumed by polling clients.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pdenham/microblog/internal/domain"
)

// timestampEpsilon is the minimum gap enforced between two notifications for
// the same user when wall-clock resolution collides.
const timestampEpsilon = 1e-6

// Store persists notification events. Implemented by
// postgres.NotificationStore.
type Store interface {
	// DeleteByName removes all events with the given name for the user.
	DeleteByName(ctx context.Context, userID int64, name string) error

	// Insert appends an event and fills in its assigned id.
	// Implementations may raise the timestamp to keep it strictly above
	// the user's stored maximum; the final value is written back to n.
	Insert(ctx context.Context, n *domain.Notification) error

	// ListSince returns the user's events with timestamp strictly greater
	// than since, ascending by timestamp (id breaks ties).
	ListSince(ctx context.Context, userID int64, since float64) ([]*domain.Notification, error)

	// MaxTimestamp returns the user's current maximum event timestamp, or 0
	// when the feed is empty.
	MaxTimestamp(ctx context.Context, userID int64) (float64, error)
}

// Service is the notification feed. Every event name currently in use is a
// counter-style "current value" event, so Notify always applies
// replace-on-name semantics: prior events of the same name for the same user
// are deleted before the new one is inserted, keeping the feed free of stale
// snapshots. A purely additive event type would need its own append method;
// none exists yet.
type Service struct {
	store  Store
	logger *slog.Logger

	mu   sync.Mutex
	last map[int64]float64
}

// NewService creates a notification feed service.
func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger.With("component", "notification_feed"),
		last:   make(map[int64]float64),
	}
}

// Notify replaces any prior events of the same name for the user, then
// appends the event with a timestamp strictly greater than the user's
// previous maximum. Clock collisions are broken with a monotonic epsilon.
func (s *Service) Notify(ctx context.Context, userID int64, name string, payload any) (*domain.Notification, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode notification payload: %w", err)
	}

	if err := s.store.DeleteByName(ctx, userID, name); err != nil {
		return nil, err
	}

	ts, err := s.nextTimestamp(ctx, userID)
	if err != nil {
		return nil, err
	}

	n := &domain.Notification{
		Name:      name,
		UserID:    userID,
		Timestamp: ts,
		Payload:   data,
	}
	if err := s.store.Insert(ctx, n); err != nil {
		return nil, err
	}
	// The store may have raised the timestamp past a write from another
	// process. Track the final value so the next local event stays above it.
	s.noteTimestamp(userID, n.Timestamp)

	s.logger.Debug("notification enqueued",
		"user_id", userID,
		"name", name,
		"timestamp", ts)
	return n, nil
}

// Poll returns the user's events newer than the given cursor, ascending by
// timestamp. Clients remember the max timestamp seen and pass it back on the
// next poll, so an event is never delivered twice to the same cursor chain.
func (s *Service) Poll(ctx context.Context, userID int64, since float64) ([]*domain.Notification, error) {
	return s.store.ListSince(ctx, userID, since)
}

// nextTimestamp picks a wall-clock timestamp strictly greater than both the
// stored maximum and the last timestamp this process handed out for the
// user.
func (s *Service) nextTimestamp(ctx context.Context, userID int64) (float64, error) {
	maxStored, err := s.store.MaxTimestamp(ctx, userID)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ts := float64(time.Now().UnixNano()) / float64(time.Second)
	if floor := maxStored; ts <= floor {
		ts = floor + timestampEpsilon
	}
	if floor := s.last[userID]; ts <= floor {
		ts = floor + timestampEpsilon
	}
	s.last[userID] = ts
	return ts, nil
}

// noteTimestamp records the timestamp actually stored for the user, which may
// exceed the one nextTimestamp handed out. Two processes inserting for the
// same user at the same instant can still collide between the store's max
// read and its write; pollers then miss at most one replaceable event until
// its name is emitted again.
func (s *Service) noteTimestamp(userID int64, ts float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ts > s.last[userID] {
		s.last[userID] = ts
	}
}
