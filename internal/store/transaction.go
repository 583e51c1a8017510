package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/pdenham/microblog/internal/domain"
	"github.com/pdenham/microblog/internal/platform/logger"
)

// SessionFn is a function that executes within a database session.
// The transaction is committed if the function returns nil, or rolled back if
// it returns an error.
type SessionFn func(ctx context.Context, sess *Session) error

// CommitHook is invoked around the commit of a session-managed transaction.
// CaptureBeforeCommit runs synchronously just before the commit and snapshots
// the session's recorded changes; PropagateAfterCommit runs only if the
// commit succeeded. If the transaction rolls back, PropagateAfterCommit is
// never called, so downstream stores never observe uncommitted data.
type CommitHook interface {
	CaptureBeforeCommit(sess *Session) *domain.ChangeSet
	PropagateAfterCommit(ctx context.Context, changes *domain.ChangeSet)
}

// RunInTransaction executes the given function within a database transaction
// with no commit hook. Use RunInSession when the transaction may touch
// searchable entities.
func RunInTransaction(ctx context.Context, db *sql.DB, fn SessionFn) error {
	return RunInSession(ctx, db, nil, fn)
}

// RunInSession executes the given function within a database transaction
// wrapped in a Session. If the function returns an error, the transaction is
// rolled back and any recorded changes are discarded. Otherwise the hook's
// change set is captured, the transaction is committed, and on commit success
// the change set is propagated.
//
// Propagation failures do not affect the return value: by that point the
// transaction is durable and the primary store is the source of truth.
func RunInSession(ctx context.Context, db *sql.DB, hook CommitHook, fn SessionFn) error {
	log := logger.FromContext(ctx)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		log.Error("failed to begin transaction",
			slog.String("error", err.Error()))
		return fmt.Errorf("%w: begin: %v", ErrTransactionFailed, err)
	}

	sess := NewSession(tx)

	// Roll back on panic, then re-panic.
	defer func() {
		if p := recover(); p != nil {
			if txErr := tx.Rollback(); txErr != nil {
				log.Error("failed to roll back transaction after panic",
					slog.String("error", txErr.Error()),
					slog.Any("panic", p))
			} else {
				log.Error("rolled back transaction after panic",
					slog.Any("panic", p))
			}
			panic(p)
		}
	}()

	if err := fn(ctx, sess); err != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			log.Error("failed to roll back transaction",
				slog.String("rollback_error", rollbackErr.Error()),
				slog.String("original_error", err.Error()))
			return fmt.Errorf(
				"error rolling back transaction: %v (original error: %w)",
				rollbackErr,
				err,
			)
		}
		log.Debug("rolled back transaction due to error",
			slog.String("error", err.Error()))
		return err
	}

	// Capture must happen before the commit so the snapshot reflects exactly
	// the rows this transaction touched; the session is cleared so the same
	// changes cannot be captured twice.
	var changes *domain.ChangeSet
	if hook != nil {
		changes = hook.CaptureBeforeCommit(sess)
		sess.clearChanges()
	}

	if err := tx.Commit(); err != nil {
		log.Error("failed to commit transaction",
			slog.String("error", err.Error()))
		return fmt.Errorf("%w: commit: %v", ErrTransactionFailed, err)
	}

	if hook != nil && changes != nil && !changes.Empty() {
		hook.PropagateAfterCommit(ctx, changes)
	}

	log.Debug("transaction committed successfully")
	return nil
}
