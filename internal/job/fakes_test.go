package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/pdenham/microblog/internal/domain"
	"github.com/pdenham/microblog/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeBroker is an in-memory Broker. Individual methods can be overridden
// through the *Fn fields.
type fakeBroker struct {
	mu       sync.Mutex
	queued   []*Job
	running  map[string]time.Time
	progress map[string]int
	done     map[string]error
	nextID   int

	EnqueueFn     func(ctx context.Context, name string, userID int64, args any) (string, error)
	SetProgressFn func(ctx context.Context, jobID string, progress int) error
	GetProgressFn func(ctx context.Context, jobID string) (int, error)
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{
		running:  make(map[string]time.Time),
		progress: make(map[string]int),
		done:     make(map[string]error),
	}
}

func (b *fakeBroker) Enqueue(ctx context.Context, name string, userID int64, args any) (string, error) {
	if b.EnqueueFn != nil {
		return b.EnqueueFn(ctx, name, userID, args)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	var raw json.RawMessage
	if args != nil {
		data, err := json.Marshal(args)
		if err != nil {
			return "", err
		}
		raw = data
	}

	b.nextID++
	id := fmt.Sprintf("job-%d", b.nextID)
	b.queued = append(b.queued, &Job{ID: id, Name: name, UserID: userID, Args: raw})
	b.progress[id] = 0
	return id, nil
}

func (b *fakeBroker) Dequeue(ctx context.Context) (*Job, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queued) == 0 {
		return nil, nil
	}
	j := b.queued[0]
	b.queued = b.queued[1:]
	b.running[j.ID] = time.Now()
	return j, nil
}

func (b *fakeBroker) Complete(ctx context.Context, jobID string, jobErr error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.running, jobID)
	b.done[jobID] = jobErr
	return nil
}

func (b *fakeBroker) SetProgress(ctx context.Context, jobID string, progress int) error {
	if b.SetProgressFn != nil {
		return b.SetProgressFn(ctx, jobID, progress)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.progress[jobID] = progress
	return nil
}

func (b *fakeBroker) GetProgress(ctx context.Context, jobID string) (int, error) {
	if b.GetProgressFn != nil {
		return b.GetProgressFn(ctx, jobID)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.progress[jobID]
	if !ok {
		return 0, ErrJobNotFound
	}
	return p, nil
}

func (b *fakeBroker) FailStale(ctx context.Context, olderThan time.Duration) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cutoff := time.Now().Add(-olderThan)
	var ids []string
	for id, claimedAt := range b.running {
		if claimedAt.Before(cutoff) {
			delete(b.running, id)
			b.progress[id] = 100
			b.done[id] = errors.New("abandoned: worker lost before completion")
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (b *fakeBroker) WithSession(sess *store.Session) Broker {
	return b
}

func (b *fakeBroker) completed(jobID string) (error, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	err, ok := b.done[jobID]
	return err, ok
}

// fakeRecords is an in-memory RecordStore keyed by job id.
type fakeRecords struct {
	mu      sync.Mutex
	records map[string]*domain.TaskRecord

	CreateFn func(ctx context.Context, record *domain.TaskRecord) error
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{records: make(map[string]*domain.TaskRecord)}
}

func (r *fakeRecords) Create(ctx context.Context, record *domain.TaskRecord) error {
	if r.CreateFn != nil {
		return r.CreateFn(ctx, record)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[record.ID] = record
	return nil
}

func (r *fakeRecords) GetInProgress(ctx context.Context, userID int64, name string) (*domain.TaskRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, record := range r.records {
		if record.UserID == userID && record.Name == name && !record.Complete {
			return record, nil
		}
	}
	return nil, store.ErrTaskNotFound
}

func (r *fakeRecords) ListInProgress(ctx context.Context, userID int64) ([]*domain.TaskRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.TaskRecord
	for _, record := range r.records {
		if record.UserID == userID && !record.Complete {
			out = append(out, record)
		}
	}
	return out, nil
}

func (r *fakeRecords) MarkComplete(ctx context.Context, jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if record, ok := r.records[jobID]; ok {
		record.Complete = true
	}
	return nil
}

func (r *fakeRecords) WithSession(sess *store.Session) RecordStore {
	return r
}

// fakeNotifier records notifications in delivery order.
type fakeNotifier struct {
	mu     sync.Mutex
	events []fakeNotification
}

type fakeNotification struct {
	userID  int64
	name    string
	payload any
}

func (n *fakeNotifier) Notify(ctx context.Context, userID int64, name string, payload any) (*domain.Notification, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, fakeNotification{userID: userID, name: name, payload: payload})
	return &domain.Notification{UserID: userID, Name: name}, nil
}

func (n *fakeNotifier) all() []fakeNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]fakeNotification(nil), n.events...)
}
