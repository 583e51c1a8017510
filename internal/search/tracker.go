package search

import (
	"context"
	"log/slog"

	"github.com/pdenham/microblog/internal/domain"
	"github.com/pdenham/microblog/internal/store"
)

// Tracker implements store.CommitHook. It snapshots the searchable entities
// a transaction touched just before commit and, once the commit has
// succeeded, hands the snapshot to the synchronizer. Non-searchable entities
// recorded in the same transaction are ignored.
type Tracker struct {
	sync   *Synchronizer
	logger *slog.Logger
}

// NewTracker creates a Tracker that propagates through the given synchronizer.
func NewTracker(sync *Synchronizer, logger *slog.Logger) *Tracker {
	return &Tracker{
		sync:   sync,
		logger: logger.With("component", "change_tracker"),
	}
}

// CaptureBeforeCommit filters the session's recorded changes down to the
// entities implementing the Searchable capability.
func (t *Tracker) CaptureBeforeCommit(sess *store.Session) *domain.ChangeSet {
	added, updated, deleted := sess.Changes()
	return &domain.ChangeSet{
		Added:   filterSearchable(added),
		Updated: filterSearchable(updated),
		Deleted: filterSearchable(deleted),
	}
}

// PropagateAfterCommit replays the change set against the index. Index
// failures are logged and otherwise swallowed: the transaction is already
// durable, search staleness is tolerable, and ReindexAll repairs drift.
func (t *Tracker) PropagateAfterCommit(ctx context.Context, changes *domain.ChangeSet) {
	if err := t.sync.EntitiesChanged(ctx, changes.Added); err != nil {
		t.logWarn(err, "add")
		return
	}
	if err := t.sync.EntitiesChanged(ctx, changes.Updated); err != nil {
		t.logWarn(err, "update")
		return
	}
	if err := t.sync.EntitiesDeleted(ctx, changes.Deleted); err != nil {
		t.logWarn(err, "delete")
	}
}

func (t *Tracker) logWarn(err error, phase string) {
	t.logger.Warn("deferred index propagation failure",
		"phase", phase,
		"error", err)
}

func filterSearchable(entities []any) []domain.Searchable {
	var out []domain.Searchable
	for _, e := range entities {
		if s, ok := e.(domain.Searchable); ok {
			out = append(out, s)
		}
	}
	return out
}
