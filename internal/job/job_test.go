package job

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdenham/microblog/internal/domain"
)

func TestActiveJobSetProgress(t *testing.T) {
	t.Parallel()

	broker := newFakeBroker()
	notifier := &fakeNotifier{}
	id, err := broker.Enqueue(context.Background(), "export_posts", 42, nil)
	require.NoError(t, err)

	active := &ActiveJob{
		Job:      Job{ID: id, Name: "export_posts", UserID: 42},
		broker:   broker,
		notifier: notifier,
		logger:   testLogger(),
	}

	require.NoError(t, active.SetProgress(context.Background(), 30))

	progress, err := broker.GetProgress(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 30, progress)

	events := notifier.all()
	require.Len(t, events, 1)
	assert.Equal(t, int64(42), events[0].userID)
	assert.Equal(t, domain.NotificationTaskProgress, events[0].name)
	assert.Equal(t, map[string]any{"task_id": id, "progress": 30}, events[0].payload)
}

func TestActiveJobSetProgressBrokerFailure(t *testing.T) {
	t.Parallel()

	broker := newFakeBroker()
	broker.SetProgressFn = func(ctx context.Context, jobID string, progress int) error {
		return errors.New("metadata write failed")
	}
	notifier := &fakeNotifier{}

	active := &ActiveJob{
		Job:      Job{ID: "job-1", Name: "export_posts", UserID: 42},
		broker:   broker,
		notifier: notifier,
		logger:   testLogger(),
	}

	assert.Error(t, active.SetProgress(context.Background(), 30))
	assert.Empty(t, notifier.all())
}

func TestActiveJobSetProgressWithoutNotifier(t *testing.T) {
	t.Parallel()

	broker := newFakeBroker()
	id, err := broker.Enqueue(context.Background(), "export_posts", 42, nil)
	require.NoError(t, err)

	active := &ActiveJob{
		Job:    Job{ID: id, Name: "export_posts", UserID: 42},
		broker: broker,
		logger: testLogger(),
	}
	assert.NoError(t, active.SetProgress(context.Background(), 10))
}

func TestActiveJobUnmarshalArgs(t *testing.T) {
	t.Parallel()

	active := &ActiveJob{Job: Job{Args: []byte(`{"format":"json"}`)}}

	var args struct {
		Format string `json:"format"`
	}
	require.NoError(t, active.UnmarshalArgs(&args))
	assert.Equal(t, "json", args.Format)

	empty := &ActiveJob{}
	assert.NoError(t, empty.UnmarshalArgs(&args))
}
