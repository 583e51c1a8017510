package store

import (
	"context"
	"database/sql"
)

// Session is the transaction-scoped unit of work. It wraps a *sql.Tx and
// records the entities added, updated, and deleted during the transaction so
// that a CommitHook can capture them just before commit. Stores bound to a
// session (via WithSession) execute their SQL through it and record row
// changes on it.
//
// Recorded entities are held as plain values; filtering to searchable
// entities happens at capture time, not at record time.
type Session struct {
	tx      *sql.Tx
	added   []any
	updated []any
	deleted []any
}

// NewSession wraps an open transaction in a Session. Most callers should use
// RunInSession instead, which manages the transaction lifecycle.
func NewSession(tx *sql.Tx) *Session {
	return &Session{tx: tx}
}

// ExecContext implements DBTX against the underlying transaction.
func (s *Session) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.tx.ExecContext(ctx, query, args...)
}

// QueryContext implements DBTX against the underlying transaction.
func (s *Session) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.tx.QueryContext(ctx, query, args...)
}

// QueryRowContext implements DBTX against the underlying transaction.
func (s *Session) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return s.tx.QueryRowContext(ctx, query, args...)
}

// RecordAdd records an entity created during this transaction.
func (s *Session) RecordAdd(entity any) {
	s.added = append(s.added, entity)
}

// RecordUpdate records an entity modified during this transaction.
func (s *Session) RecordUpdate(entity any) {
	s.updated = append(s.updated, entity)
}

// RecordDelete records an entity deleted during this transaction.
func (s *Session) RecordDelete(entity any) {
	s.deleted = append(s.deleted, entity)
}

// Changes returns the recorded added, updated, and deleted entities.
func (s *Session) Changes() (added, updated, deleted []any) {
	return s.added, s.updated, s.deleted
}

// clearChanges drops the recorded changes. Called once the change set has
// been captured so a session is never consumed twice.
func (s *Session) clearChanges() {
	s.added, s.updated, s.deleted = nil, nil, nil
}
