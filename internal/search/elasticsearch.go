package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// DefaultESTimeout bounds each request to the search engine. A timeout is
// reported as ErrIndexUnavailable like any other index failure.
const DefaultESTimeout = 10 * time.Second

// ESClient talks to an Elasticsearch-compatible HTTP API:
//
//	PUT    /{namespace}/_doc/{id}   body = field map
//	DELETE /{namespace}/_doc/{id}
//	GET    /{namespace}/_search     query + from/size paging
type ESClient struct {
	baseURL string
	httpc   *http.Client
}

// NewESClient creates a client for the engine at baseURL. A zero timeout
// falls back to DefaultESTimeout.
func NewESClient(baseURL string, timeout time.Duration) *ESClient {
	if timeout == 0 {
		timeout = DefaultESTimeout
	}
	return &ESClient{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: timeout},
	}
}

// Index adds or replaces a document.
func (c *ESClient) Index(ctx context.Context, namespace string, id int64, fields map[string]string) error {
	body, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode index document: %w", err)
	}

	url := c.docURL(namespace, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build index request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: index %s/%d: %v", ErrIndexUnavailable, namespace, id, err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: index %s/%d: status %d", ErrIndexUnavailable, namespace, id, resp.StatusCode)
	}
	return nil
}

// Delete removes a document. A 404 from the engine is treated as success so
// deletes stay idempotent.
func (c *ESClient) Delete(ctx context.Context, namespace string, id int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.docURL(namespace, id), nil)
	if err != nil {
		return fmt.Errorf("failed to build delete request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: delete %s/%d: %v", ErrIndexUnavailable, namespace, id, err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("%w: delete %s/%d: status %d", ErrIndexUnavailable, namespace, id, resp.StatusCode)
	}
	return nil
}

// esSearchResponse is the subset of the engine's search response we consume.
type esSearchResponse struct {
	Hits struct {
		Total struct {
			Value uint64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID string `json:"_id"`
		} `json:"hits"`
	} `json:"hits"`
}

// Query runs a multi-field match query with from/size paging.
func (c *ESClient) Query(ctx context.Context, namespace, query string, page, pageSize int) ([]int64, uint64, error) {
	reqBody := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  query,
				"fields": []string{"*"},
			},
		},
		"from": (page - 1) * pageSize,
		"size": pageSize,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to encode search request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/_search", c.baseURL, namespace)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: search %s: %v", ErrIndexUnavailable, namespace, err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode >= 300 {
		return nil, 0, fmt.Errorf("%w: search %s: status %d", ErrIndexUnavailable, namespace, resp.StatusCode)
	}

	var parsed esSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, 0, fmt.Errorf("%w: search %s: decode response: %v", ErrIndexUnavailable, namespace, err)
	}

	ids := make([]int64, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		id, err := strconv.ParseInt(hit.ID, 10, 64)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: search %s: bad hit id %q", ErrIndexUnavailable, namespace, hit.ID)
		}
		ids = append(ids, id)
	}
	return ids, parsed.Hits.Total.Value, nil
}

func (c *ESClient) docURL(namespace string, id int64) string {
	return fmt.Sprintf("%s/%s/_doc/%d", c.baseURL, namespace, id)
}

// drainAndClose reads the body to completion so the connection can be reused.
func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}
