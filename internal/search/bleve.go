package search

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
)

// namespaceField is the reserved document field holding the namespace, used
// to scope queries when multiple entity types share one bleve index.
const namespaceField = "_namespace"

// BleveIndex is an embedded Client backed by a bleve index. It serves
// single-process deployments and tests, where running a separate search
// engine is not worth the operational cost.
type BleveIndex struct {
	index bleve.Index
}

// NewBleveIndex opens or creates a bleve index at path. An empty path
// creates an in-memory index.
func NewBleveIndex(path string) (*BleveIndex, error) {
	mapping := bleve.NewIndexMapping()

	if path == "" {
		idx, err := bleve.NewMemOnly(mapping)
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory index: %w", err)
		}
		return &BleveIndex{index: idx}, nil
	}

	idx, err := bleve.Open(path)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		idx, err = bleve.New(path, mapping)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open index at %s: %w", path, err)
	}
	return &BleveIndex{index: idx}, nil
}

// Close releases the underlying index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}

// Index adds or replaces a document.
func (b *BleveIndex) Index(ctx context.Context, namespace string, id int64, fields map[string]string) error {
	doc := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		doc[k] = v
	}
	doc[namespaceField] = namespace

	if err := b.index.Index(docKey(namespace, id), doc); err != nil {
		return fmt.Errorf("%w: index %s/%d: %v", ErrIndexUnavailable, namespace, id, err)
	}
	return nil
}

// Delete removes a document. Bleve treats deleting an absent id as a no-op,
// which matches the idempotent delete contract.
func (b *BleveIndex) Delete(ctx context.Context, namespace string, id int64) error {
	if err := b.index.Delete(docKey(namespace, id)); err != nil {
		return fmt.Errorf("%w: delete %s/%d: %v", ErrIndexUnavailable, namespace, id, err)
	}
	return nil
}

// Query runs a query-string query scoped to the namespace, paged with
// from/size semantics, returning ids in relevance order.
func (b *BleveIndex) Query(ctx context.Context, namespace, query string, page, pageSize int) ([]int64, uint64, error) {
	nsQuery := bleve.NewTermQuery(namespace)
	nsQuery.SetField(namespaceField)
	full := bleve.NewConjunctionQuery(bleve.NewQueryStringQuery(query), nsQuery)

	req := bleve.NewSearchRequestOptions(full, pageSize, (page-1)*pageSize, false)
	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: search %s: %v", ErrIndexUnavailable, namespace, err)
	}

	ids := make([]int64, 0, len(res.Hits))
	for _, hit := range res.Hits {
		id, err := parseDocKey(hit.ID)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: search %s: %v", ErrIndexUnavailable, namespace, err)
		}
		ids = append(ids, id)
	}
	return ids, res.Total, nil
}

func docKey(namespace string, id int64) string {
	return namespace + ":" + strconv.FormatInt(id, 10)
}

func parseDocKey(key string) (int64, error) {
	i := strings.LastIndexByte(key, ':')
	if i < 0 {
		return 0, fmt.Errorf("bad document key %q", key)
	}
	return strconv.ParseInt(key[i+1:], 10, 64)
}
