package retrieval

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"sort"
	"strings"

	_ "image/gif"
	_ "image/jpeg"

	"github.com/coursebot/course-rag/internal/embeddings"
	"github.com/coursebot/course-rag/pkg/models"
)

// Embedder converts a text or image input into a vector.
type Embedder interface {
	Embed(ctx context.Context, input embeddings.Input) ([]float32, error)
}

// Searcher is the nearest-neighbor query surface of the vector index.
type Searcher interface {
	Query(ctx context.Context, vector []float32, k int) ([]models.RetrievedMatch, error)
}

// ErrMissingQuestion reports a request without a question; no
// retrieval is attempted.
var ErrMissingQuestion = errors.New("question is required")

// ErrInvalidImage reports an image that could not be decoded.
var ErrInvalidImage = errors.New("invalid image")

// Config holds retrieval configuration.
type Config struct {
	SearchDepth int // matches requested per signal
}

// Evidence is the bounded evidence set for one request: the joined
// context string, the capped citation list, and the kept matches in
// rank order. Links may cite fewer matches than the context contains.
type Evidence struct {
	Context string
	Links   []models.Link
	Matches []models.RetrievedMatch
}

// Retriever pools vector searches across the request's signals and
// cuts the result down to a bounded evidence set.
type Retriever struct {
	embedder Embedder
	searcher Searcher
	depth    int
}

// New creates a retriever over the shared embedder and index.
func New(embedder Embedder, searcher Searcher, config Config) *Retriever {
	depth := config.SearchDepth
	if depth <= 0 {
		depth = 3
	}
	return &Retriever{
		embedder: embedder,
		searcher: searcher,
		depth:    depth,
	}
}

// Retrieve validates the request, collects matches for each present
// signal in fixed precedence order (link, image, question), ranks the
// pooled list by distance, and truncates it.
//
// Truncation rule: a pool of exactly 3 keeps all 3; any other size is
// capped at 4. Citations are additionally capped at 3, so the 4th kept
// match can contribute context without being cited.
func (r *Retriever) Retrieve(ctx context.Context, req models.UserRequest) (*Evidence, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, ErrMissingQuestion
	}

	var pool []models.RetrievedMatch

	if req.Link != "" {
		matches, err := r.search(ctx, embeddings.Text(req.Link))
		if err != nil {
			return nil, fmt.Errorf("link signal: %w", err)
		}
		pool = append(pool, matches...)
	}

	if req.Image != "" {
		img, err := normalizeImage(req.Image)
		if err != nil {
			return nil, err
		}
		matches, err := r.search(ctx, embeddings.Image(img))
		if err != nil {
			return nil, fmt.Errorf("image signal: %w", err)
		}
		pool = append(pool, matches...)
	}

	matches, err := r.search(ctx, embeddings.Text(req.Question))
	if err != nil {
		return nil, fmt.Errorf("question signal: %w", err)
	}
	pool = append(pool, matches...)

	// Stable: ties keep insertion order, which reflects signal precedence.
	sort.SliceStable(pool, func(i, j int) bool {
		return pool[i].Distance < pool[j].Distance
	})

	kept := pool
	if len(pool) != 3 && len(pool) > 4 {
		kept = pool[:4]
	}

	texts := make([]string, len(kept))
	links := make([]models.Link, len(kept))
	for i, m := range kept {
		texts[i] = m.Text
		links[i] = models.Link{URL: m.URL, Text: m.Text}
	}
	if len(links) > 3 {
		links = links[:3]
	}

	slog.Debug("retrieval complete", "pooled", len(pool), "kept", len(kept), "links", len(links))

	return &Evidence{
		Context: strings.Join(texts, "\n"),
		Links:   links,
		Matches: kept,
	}, nil
}

func (r *Retriever) search(ctx context.Context, input embeddings.Input) ([]models.RetrievedMatch, error) {
	vector, err := r.embedder.Embed(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	return r.searcher.Query(ctx, vector, r.depth)
}

// normalizeImage decodes a base64 image and re-encodes it as PNG,
// giving the embedding service one predictable format.
func normalizeImage(encoded string) ([]byte, error) {
	if idx := strings.Index(encoded, ";base64,"); idx != -1 {
		encoded = encoded[idx+len(";base64,"):]
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return buf.Bytes(), nil
}
