// Package search keeps the full-text index eventually consistent with the
// primary store. It provides the index client implementations, the
// synchronizer that replays committed changes against the index, and the
// commit-time change tracker.
package search

import (
	"context"
	"errors"

	"github.com/pdenham/microblog/internal/domain"
)

// ErrIndexUnavailable indicates that a write or query against the search
// index failed. Index writes happen after the primary-store transaction has
// committed, so this error never rolls anything back: propagation logs it and
// moves on, and queries degrade to empty results. ReindexAll is the repair
// mechanism for any resulting drift.
var ErrIndexUnavailable = errors.New("search index unavailable")

// Client is a thin protocol wrapper around a full-text search engine.
type Client interface {
	// Index adds or replaces the document for (namespace, id). Re-adding an
	// existing id overwrites it (last write wins).
	Index(ctx context.Context, namespace string, id int64, fields map[string]string) error

	// Delete removes the document for (namespace, id). Deleting an absent id
	// is not an error.
	Delete(ctx context.Context, namespace string, id int64) error

	// Query runs a full-text query against a namespace and returns the
	// matching ids in engine-relevance order plus the total hit count.
	// page is 1-indexed; pageSize bounds the id batch requested from the
	// engine, not a post-hoc slice.
	Query(ctx context.Context, namespace, query string, page, pageSize int) (ids []int64, total uint64, err error)
}

// Reindexer is the slice of Client needed by full-rebuild callers.
type Reindexer interface {
	ReindexAll(ctx context.Context, namespace string, entities []domain.Searchable) error
}
