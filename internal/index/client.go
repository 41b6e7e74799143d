package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/coursebot/course-rag/pkg/models"
)

// Config holds vector index configuration.
type Config struct {
	Addresses  []string
	Name       string // index name, e.g. "articles"
	Username   string
	Password   string
	Dimensions int
}

// Entry is a stored index record: one per corpus document, written
// exactly once at population time and never mutated.
type Entry struct {
	ID        int       `json:"id"`
	Text      string    `json:"text"`
	URL       string    `json:"url"`
	Embedding []float32 `json:"embedding"`
}

// Client wraps Elasticsearch as an append-only vector index.
type Client struct {
	es   *elasticsearch.Client
	name string
	dims int
}

// New creates a new vector index client.
func New(config Config) (*Client, error) {
	if config.Name == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if config.Dimensions <= 0 {
		config.Dimensions = 512
	}

	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: config.Addresses,
		Username:  config.Username,
		Password:  config.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ES client: %w", err)
	}

	return &Client{
		es:   es,
		name: config.Name,
		dims: config.Dimensions,
	}, nil
}

// Ping checks if the index backend is available.
func (c *Client) Ping(ctx context.Context) bool {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return false
	}
	defer res.Body.Close()
	return !res.IsError()
}

// indexMapping defines the ES mapping for index entries. The embedding
// is a dense vector under cosine similarity; everything else is plain
// entry payload.
const indexMapping = `{
	"mappings": {
		"properties": {
			"id": { "type": "integer" },
			"text": { "type": "text" },
			"url": { "type": "keyword" },
			"embedding": {
				"type": "dense_vector",
				"dims": %d,
				"index": true,
				"similarity": "cosine"
			}
		}
	}
}`

// EnsureIndex creates the named index if absent, or attaches to the
// existing one. Returns true when a fresh index was created, so the
// caller knows whether population is needed.
func (c *Client) EnsureIndex(ctx context.Context) (bool, error) {
	res, err := c.es.Indices.Exists([]string{c.name}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("failed to check index: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 200 {
		slog.Debug("attached to existing index", "name", c.name)
		return false, nil
	}

	mapping := fmt.Sprintf(indexMapping, c.dims)
	res, err = c.es.Indices.Create(
		c.name,
		c.es.Indices.Create.WithContext(ctx),
		c.es.Indices.Create.WithBody(bytes.NewReader([]byte(mapping))),
	)
	if err != nil {
		return false, fmt.Errorf("failed to create index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return false, fmt.Errorf("error creating index: %s", res.String())
	}

	slog.Info("created fresh index", "name", c.name, "dims", c.dims)
	return true, nil
}

// DeleteIndex removes the index (for testing/cleanup).
func (c *Client) DeleteIndex(ctx context.Context) error {
	res, err := c.es.Indices.Delete([]string{c.name}, c.es.Indices.Delete.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	return nil
}

// AddDocuments bulk-inserts one entry per document. Document ids must
// be unique; callers populate a fresh index exactly once.
func (c *Client) AddDocuments(ctx context.Context, docs []models.Document, vectors [][]float32) error {
	if len(docs) != len(vectors) {
		return fmt.Errorf("documents and vectors length mismatch: %d vs %d", len(docs), len(vectors))
	}

	for i, doc := range docs {
		entry := Entry{
			ID:        doc.ID,
			Text:      doc.Content,
			URL:       doc.URL,
			Embedding: vectors[i],
		}

		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to marshal entry %d: %w", doc.ID, err)
		}

		res, err := c.es.Index(
			c.name,
			bytes.NewReader(data),
			c.es.Index.WithContext(ctx),
			c.es.Index.WithDocumentID(strconv.Itoa(doc.ID)),
		)
		if err != nil {
			return fmt.Errorf("failed to index entry %d: %w", doc.ID, err)
		}
		if res.IsError() {
			body := res.String()
			res.Body.Close()
			return fmt.Errorf("error indexing entry %d: %s", doc.ID, body)
		}
		res.Body.Close()
	}

	if err := c.refresh(ctx); err != nil {
		return err
	}

	slog.Info("populated index", "name", c.name, "entries", len(docs))
	return nil
}

// refresh makes newly added entries searchable immediately.
func (c *Client) refresh(ctx context.Context) error {
	res, err := c.es.Indices.Refresh(
		c.es.Indices.Refresh.WithContext(ctx),
		c.es.Indices.Refresh.WithIndex(c.name),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	return nil
}

// searchResponse represents the ES kNN search response structure.
type searchResponse struct {
	Hits struct {
		Hits []struct {
			Score  float64 `json:"_score"`
			Source Entry   `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Query performs an approximate nearest-neighbor search and returns up
// to k matches ordered ascending by distance. ES reports a cosine
// similarity score in (0, 1]; distance is 1 - score, so the backend's
// descending-score order is already ascending-distance order.
// A missing or empty index yields an empty result, not an error.
func (c *Client) Query(ctx context.Context, vector []float32, k int) ([]models.RetrievedMatch, error) {
	if k <= 0 {
		k = 3
	}

	searchQuery := map[string]any{
		"knn": map[string]any{
			"field":          "embedding",
			"query_vector":   vector,
			"k":              k,
			"num_candidates": k * 10,
		},
		"_source": []string{"id", "text", "url"},
		"size":    k,
	}

	data, err := json.Marshal(searchQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.name),
		c.es.Search.WithBody(bytes.NewReader(data)),
	)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 404 {
		slog.Debug("query against missing index", "name", c.name)
		return []models.RetrievedMatch{}, nil
	}
	if res.IsError() {
		return nil, fmt.Errorf("search error: %s", res.String())
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	matches := make([]models.RetrievedMatch, len(sr.Hits.Hits))
	for i, hit := range sr.Hits.Hits {
		matches[i] = models.RetrievedMatch{
			ID:       hit.Source.ID,
			Text:     hit.Source.Text,
			Distance: 1 - hit.Score,
			URL:      hit.Source.URL,
		}
	}
	return matches, nil
}

// getResponse represents the ES get response structure.
type getResponse struct {
	Found  bool  `json:"found"`
	Source Entry `json:"_source"`
}

// GetDocument retrieves an entry by document id. Returns nil when the
// entry (or the index itself) does not exist.
func (c *Client) GetDocument(ctx context.Context, id int) (*Entry, error) {
	res, err := c.es.Get(
		c.name,
		strconv.Itoa(id),
		c.es.Get.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("get failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 404 {
		return nil, nil
	}
	if res.IsError() {
		return nil, fmt.Errorf("get error: %s", res.String())
	}

	var gr getResponse
	if err := json.NewDecoder(res.Body).Decode(&gr); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if !gr.Found {
		return nil, nil
	}

	return &gr.Source, nil
}
