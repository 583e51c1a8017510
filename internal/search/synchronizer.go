package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pdenham/microblog/internal/domain"
)

// Synchronizer replays committed entity changes against the index client.
// It runs strictly after the primary-store transaction has committed, so its
// failures never affect the committed write: the index is eventually
// consistent, with ReindexAll as the repair mechanism.
type Synchronizer struct {
	client Client
	logger *slog.Logger
}

// NewSynchronizer creates a Synchronizer using the given index client.
func NewSynchronizer(client Client, logger *slog.Logger) *Synchronizer {
	return &Synchronizer{
		client: client,
		logger: logger.With("component", "index_synchronizer"),
	}
}

// EntitiesChanged upserts the index document for each created or updated
// entity. The first index failure aborts the batch and is returned.
func (s *Synchronizer) EntitiesChanged(ctx context.Context, entities []domain.Searchable) error {
	for _, entity := range entities {
		doc := entity.IndexDocument()
		if err := s.client.Index(ctx, doc.Namespace, doc.ID, doc.Fields); err != nil {
			return err
		}
	}
	return nil
}

// EntitiesDeleted removes each entity from the index by (namespace, id).
// Removal is idempotent: deleting an entity that was never indexed succeeds.
func (s *Synchronizer) EntitiesDeleted(ctx context.Context, entities []domain.Searchable) error {
	for _, entity := range entities {
		doc := entity.IndexDocument()
		if err := s.client.Delete(ctx, doc.Namespace, doc.ID); err != nil {
			return err
		}
	}
	return nil
}

// ReindexAll rebuilds a namespace by upserting every live entity. It does
// not pre-clear the index; upsert semantics make repeated rebuilds safe.
func (s *Synchronizer) ReindexAll(ctx context.Context, namespace string, entities []domain.Searchable) error {
	s.logger.Info("reindexing namespace",
		"namespace", namespace,
		"entity_count", len(entities))

	for _, entity := range entities {
		doc := entity.IndexDocument()
		if doc.Namespace != namespace {
			return fmt.Errorf("entity namespace %q does not match reindex namespace %q", doc.Namespace, namespace)
		}
		if err := s.client.Index(ctx, doc.Namespace, doc.ID, doc.Fields); err != nil {
			return err
		}
	}
	return nil
}
