package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdenham/microblog/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memoryStore is an in-memory Store.
type memoryStore struct {
	mu     sync.Mutex
	nextID int64
	events []*domain.Notification

	DeleteByNameFn func(ctx context.Context, userID int64, name string) error
	InsertFn       func(ctx context.Context, n *domain.Notification) error
}

func (s *memoryStore) DeleteByName(ctx context.Context, userID int64, name string) error {
	if s.DeleteByNameFn != nil {
		return s.DeleteByNameFn(ctx, userID, name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.events[:0]
	for _, n := range s.events {
		if n.UserID != userID || n.Name != name {
			kept = append(kept, n)
		}
	}
	s.events = kept
	return nil
}

func (s *memoryStore) Insert(ctx context.Context, n *domain.Notification) error {
	if s.InsertFn != nil {
		return s.InsertFn(ctx, n)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	n.ID = s.nextID
	s.events = append(s.events, n)
	return nil
}

func (s *memoryStore) ListSince(ctx context.Context, userID int64, since float64) ([]*domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Notification
	for _, n := range s.events {
		if n.UserID == userID && n.Timestamp > since {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}

func (s *memoryStore) MaxTimestamp(ctx context.Context, userID int64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var max float64
	for _, n := range s.events {
		if n.UserID == userID && n.Timestamp > max {
			max = n.Timestamp
		}
	}
	return max, nil
}

func TestNotifyAppendsEvent(t *testing.T) {
	t.Parallel()

	store := &memoryStore{}
	svc := NewService(store, testLogger())

	n, err := svc.Notify(context.Background(), 42, domain.NotificationTaskProgress, map[string]any{
		"task_id":  "job-1",
		"progress": 40,
	})
	require.NoError(t, err)
	assert.NotZero(t, n.ID)
	assert.Equal(t, int64(42), n.UserID)
	assert.Equal(t, domain.NotificationTaskProgress, n.Name)
	assert.Greater(t, n.Timestamp, 0.0)

	var payload struct {
		TaskID   string `json:"task_id"`
		Progress int    `json:"progress"`
	}
	require.NoError(t, n.UnmarshalPayload(&payload))
	assert.Equal(t, "job-1", payload.TaskID)
	assert.Equal(t, 40, payload.Progress)
}

func TestNotifyReplacesSameName(t *testing.T) {
	t.Parallel()

	store := &memoryStore{}
	svc := NewService(store, testLogger())
	ctx := context.Background()

	_, err := svc.Notify(ctx, 42, domain.NotificationUnreadMessageCount, 1)
	require.NoError(t, err)
	_, err = svc.Notify(ctx, 42, domain.NotificationUnreadMessageCount, 2)
	require.NoError(t, err)
	_, err = svc.Notify(ctx, 42, domain.NotificationUnreadMessageCount, 3)
	require.NoError(t, err)

	events, err := svc.Poll(ctx, 42, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)

	var count int
	require.NoError(t, events[0].UnmarshalPayload(&count))
	assert.Equal(t, 3, count)
}

func TestNotifyDistinctNamesCoexist(t *testing.T) {
	t.Parallel()

	store := &memoryStore{}
	svc := NewService(store, testLogger())
	ctx := context.Background()

	_, err := svc.Notify(ctx, 42, domain.NotificationUnreadMessageCount, 5)
	require.NoError(t, err)
	_, err = svc.Notify(ctx, 42, domain.NotificationTaskProgress, map[string]any{"task_id": "j", "progress": 10})
	require.NoError(t, err)

	events, err := svc.Poll(ctx, 42, 0)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestNotifyTimestampsStrictlyAscend(t *testing.T) {
	t.Parallel()

	store := &memoryStore{}
	svc := NewService(store, testLogger())
	ctx := context.Background()

	// Distinct names so replace semantics keep every event.
	names := []string{"a", "b", "c", "d", "e"}
	var last float64
	for _, name := range names {
		n, err := svc.Notify(ctx, 42, name, nil)
		require.NoError(t, err)
		assert.Greater(t, n.Timestamp, last)
		last = n.Timestamp
	}
}

func TestNotifyTimestampsPerUser(t *testing.T) {
	t.Parallel()

	store := &memoryStore{}
	svc := NewService(store, testLogger())
	ctx := context.Background()

	a, err := svc.Notify(ctx, 1, "event", nil)
	require.NoError(t, err)
	b, err := svc.Notify(ctx, 2, "event", nil)
	require.NoError(t, err)

	assert.NotZero(t, a.Timestamp)
	assert.NotZero(t, b.Timestamp)
}

func TestNotifyHonorsStoreRaisedTimestamp(t *testing.T) {
	t.Parallel()

	// The store raises low timestamps the way the postgres implementation
	// does when another process has already written a higher one.
	const raisedTo = 4e9
	store := &memoryStore{}
	store.InsertFn = func(ctx context.Context, n *domain.Notification) error {
		if n.Timestamp < raisedTo {
			n.Timestamp = raisedTo
		}
		store.mu.Lock()
		defer store.mu.Unlock()
		store.nextID++
		n.ID = store.nextID
		store.events = append(store.events, n)
		return nil
	}
	svc := NewService(store, testLogger())
	ctx := context.Background()

	first, err := svc.Notify(ctx, 42, "a", nil)
	require.NoError(t, err)
	assert.Equal(t, float64(raisedTo), first.Timestamp)

	// The next event must land strictly above the raised value even though
	// the wall clock is still far behind it.
	second, err := svc.Notify(ctx, 42, "b", nil)
	require.NoError(t, err)
	assert.Greater(t, second.Timestamp, first.Timestamp)

	events, err := svc.Poll(ctx, 42, first.Timestamp)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, second.ID, events[0].ID)
}

func TestPollCursor(t *testing.T) {
	t.Parallel()

	store := &memoryStore{}
	svc := NewService(store, testLogger())
	ctx := context.Background()

	first, err := svc.Notify(ctx, 42, "a", nil)
	require.NoError(t, err)
	second, err := svc.Notify(ctx, 42, "b", nil)
	require.NoError(t, err)

	// From zero, both events come back in timestamp order.
	events, err := svc.Poll(ctx, 42, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, first.ID, events[0].ID)
	assert.Equal(t, second.ID, events[1].ID)

	// Cursor at the first timestamp returns only the second: the comparison
	// is strict, so a seen event is never redelivered.
	events, err = svc.Poll(ctx, 42, first.Timestamp)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, second.ID, events[0].ID)

	// Cursor at the head returns nothing.
	events, err = svc.Poll(ctx, 42, second.Timestamp)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestPollScopedToUser(t *testing.T) {
	t.Parallel()

	store := &memoryStore{}
	svc := NewService(store, testLogger())
	ctx := context.Background()

	_, err := svc.Notify(ctx, 1, "a", nil)
	require.NoError(t, err)
	_, err = svc.Notify(ctx, 2, "b", nil)
	require.NoError(t, err)

	events, err := svc.Poll(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "a", events[0].Name)
}

func TestNotifyStoreFailures(t *testing.T) {
	t.Parallel()

	t.Run("delete failure aborts", func(t *testing.T) {
		t.Parallel()
		store := &memoryStore{}
		store.DeleteByNameFn = func(ctx context.Context, userID int64, name string) error {
			return errors.New("delete failed")
		}
		svc := NewService(store, testLogger())

		_, err := svc.Notify(context.Background(), 42, "a", nil)
		assert.Error(t, err)
	})

	t.Run("insert failure surfaces", func(t *testing.T) {
		t.Parallel()
		store := &memoryStore{}
		store.InsertFn = func(ctx context.Context, n *domain.Notification) error {
			return errors.New("insert failed")
		}
		svc := NewService(store, testLogger())

		_, err := svc.Notify(context.Background(), 42, "a", nil)
		assert.Error(t, err)
	})

	t.Run("unencodable payload", func(t *testing.T) {
		t.Parallel()
		svc := NewService(&memoryStore{}, testLogger())

		_, err := svc.Notify(context.Background(), 42, "a", func() {})
		assert.Error(t, err)
	})
}
