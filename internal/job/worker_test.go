package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdenham/microblog/internal/domain"
	"github.com/pdenham/microblog/internal/store"
)

func launchTestJob(t *testing.T, broker *fakeBroker, records *fakeRecords, name string) *domain.TaskRecord {
	t.Helper()
	svc := NewService(broker, records, testLogger())
	record, err := svc.LaunchTask(context.Background(), store.NewSession(nil), 42, name, "", nil)
	require.NoError(t, err)
	return record
}

func TestWorkerProcessJobSuccess(t *testing.T) {
	t.Parallel()

	broker := newFakeBroker()
	records := newFakeRecords()
	notifier := &fakeNotifier{}

	executed := false
	registry := NewRegistry()
	registry.Register("export_posts", func(ctx context.Context, j *ActiveJob) error {
		executed = true
		return j.SetProgress(ctx, 50)
	})

	record := launchTestJob(t, broker, records, "export_posts")
	worker := NewWorker(broker, registry, records, notifier, DefaultWorkerConfig(), testLogger())

	j, err := broker.Dequeue(context.Background())
	require.NoError(t, err)
	worker.processJob(context.Background(), j, testLogger())

	assert.True(t, executed)

	jobErr, done := broker.completed(record.ID)
	assert.True(t, done)
	assert.NoError(t, jobErr)

	progress, err := broker.GetProgress(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, progress)

	stored, err := records.ListInProgress(context.Background(), 42)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestWorkerFailedJobStillCompletes(t *testing.T) {
	t.Parallel()

	broker := newFakeBroker()
	records := newFakeRecords()

	registry := NewRegistry()
	registry.Register("export_posts", func(ctx context.Context, j *ActiveJob) error {
		return errors.New("handler blew up")
	})

	record := launchTestJob(t, broker, records, "export_posts")
	worker := NewWorker(broker, registry, records, &fakeNotifier{}, DefaultWorkerConfig(), testLogger())

	j, err := broker.Dequeue(context.Background())
	require.NoError(t, err)
	worker.processJob(context.Background(), j, testLogger())

	jobErr, done := broker.completed(record.ID)
	assert.True(t, done)
	assert.Error(t, jobErr)

	// A failed job still reads as finished: progress 100 and record complete.
	progress, err := broker.GetProgress(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, progress)

	stored, err := records.ListInProgress(context.Background(), 42)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestWorkerRecoversFromPanic(t *testing.T) {
	t.Parallel()

	broker := newFakeBroker()
	records := newFakeRecords()

	registry := NewRegistry()
	registry.Register("export_posts", func(ctx context.Context, j *ActiveJob) error {
		panic("boom")
	})

	record := launchTestJob(t, broker, records, "export_posts")
	worker := NewWorker(broker, registry, records, &fakeNotifier{}, DefaultWorkerConfig(), testLogger())

	j, err := broker.Dequeue(context.Background())
	require.NoError(t, err)
	assert.NotPanics(t, func() {
		worker.processJob(context.Background(), j, testLogger())
	})

	jobErr, done := broker.completed(record.ID)
	assert.True(t, done)
	assert.Error(t, jobErr)
}

func TestWorkerUnknownJobName(t *testing.T) {
	t.Parallel()

	broker := newFakeBroker()
	records := newFakeRecords()

	record := launchTestJob(t, broker, records, "stale_name")
	worker := NewWorker(broker, NewRegistry(), records, &fakeNotifier{}, DefaultWorkerConfig(), testLogger())

	j, err := broker.Dequeue(context.Background())
	require.NoError(t, err)
	worker.processJob(context.Background(), j, testLogger())

	jobErr, done := broker.completed(record.ID)
	assert.True(t, done)
	assert.ErrorIs(t, jobErr, ErrUnknownJob)
}

func TestWorkerRunDrainsQueue(t *testing.T) {
	t.Parallel()

	broker := newFakeBroker()
	records := newFakeRecords()

	processed := make(chan string, 2)
	registry := NewRegistry()
	registry.Register("export_posts", func(ctx context.Context, j *ActiveJob) error {
		processed <- j.ID
		return nil
	})

	svc := NewService(broker, records, testLogger())
	_, err := svc.LaunchTask(context.Background(), store.NewSession(nil), 1, "export_posts", "", nil)
	require.NoError(t, err)
	_, err = svc.LaunchTask(context.Background(), store.NewSession(nil), 2, "export_posts", "", nil)
	require.NoError(t, err)

	config := WorkerConfig{Count: 2, PollInterval: 10 * time.Millisecond}
	worker := NewWorker(broker, registry, records, &fakeNotifier{}, config, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	for i := 0; i < 2; i++ {
		select {
		case <-processed:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for job to be processed")
		}
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for worker to stop")
	}
}

func TestWorkerSweepStale(t *testing.T) {
	t.Parallel()

	broker := newFakeBroker()
	records := newFakeRecords()

	record := launchTestJob(t, broker, records, "export_posts")
	worker := NewWorker(broker, NewRegistry(), records, &fakeNotifier{}, DefaultWorkerConfig(), testLogger())

	// Claim the job, then lose the worker before it finishes.
	j, err := broker.Dequeue(context.Background())
	require.NoError(t, err)
	broker.mu.Lock()
	broker.running[j.ID] = time.Now().Add(-time.Hour)
	broker.mu.Unlock()

	worker.sweepStale(context.Background())

	jobErr, done := broker.completed(record.ID)
	assert.True(t, done)
	assert.Error(t, jobErr)

	progress, err := broker.GetProgress(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, progress)

	stored, err := records.ListInProgress(context.Background(), 42)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestWorkerSweepLeavesFreshJobsRunning(t *testing.T) {
	t.Parallel()

	broker := newFakeBroker()
	records := newFakeRecords()

	record := launchTestJob(t, broker, records, "export_posts")
	worker := NewWorker(broker, NewRegistry(), records, &fakeNotifier{}, DefaultWorkerConfig(), testLogger())

	_, err := broker.Dequeue(context.Background())
	require.NoError(t, err)

	worker.sweepStale(context.Background())

	_, done := broker.completed(record.ID)
	assert.False(t, done)

	stored, err := records.ListInProgress(context.Background(), 42)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestWorkerConfigDefaults(t *testing.T) {
	t.Parallel()

	worker := NewWorker(newFakeBroker(), NewRegistry(), newFakeRecords(), nil, WorkerConfig{}, testLogger())
	assert.Equal(t, DefaultWorkerConfig().Count, worker.config.Count)
	assert.Equal(t, DefaultWorkerConfig().PollInterval, worker.config.PollInterval)
	assert.Equal(t, DefaultWorkerConfig().StaleAfter, worker.config.StaleAfter)
}
