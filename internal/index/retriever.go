package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
)

// ErrRetrievalUnavailable is returned when the index cannot be queried at
// all: the database is unreachable or the query cannot be embedded. It is
// distinct from an empty result, which simply means no review was similar
// enough.
var ErrRetrievalUnavailable = errors.New("index: retrieval unavailable")

// Retriever answers similarity queries against the review index.
type Retriever struct {
	store    *Store
	embedder Embedder
	logger   *slog.Logger
}

// NewRetriever creates a Retriever. If logger is nil, the default slog
// logger is used.
func NewRetriever(store *Store, embedder Embedder, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{store: store, embedder: embedder, logger: logger}
}

// Retrieve returns the passages whose cosine similarity to query is at
// least threshold, ordered by descending similarity and capped at n. Ties
// keep the index insertion order. An empty slice is a valid outcome; it
// means no grounding is available, not an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, threshold float64, n int) ([]Passage, error) {
	if n <= 0 {
		return nil, nil
	}

	queryVec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %w", ErrRetrievalUnavailable, err)
	}
	if len(queryVec) == 0 {
		return nil, nil
	}

	chunks, err := r.store.all(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRetrievalUnavailable, err)
	}

	passages := make([]Passage, 0, n)
	for _, c := range chunks {
		sim := cosineSimilarity(queryVec, c.Embedding)
		if sim < threshold {
			continue
		}
		passages = append(passages, Passage{
			Text:         c.Text,
			Score:        sim,
			BusinessID:   c.BusinessID,
			ReviewID:     c.ReviewID,
			BusinessName: c.BusinessName,
			PlaceRating:  c.PlaceRating,
			Street:       c.Street,
			Neighborhood: c.Neighborhood,
			City:         c.City,
		})
	}

	// Stable sort keeps insertion order for equal scores.
	sort.SliceStable(passages, func(i, j int) bool {
		return passages[i].Score > passages[j].Score
	})
	if len(passages) > n {
		passages = passages[:n]
	}

	r.logger.Debug("index: retrieval complete",
		"query_len", len(query),
		"threshold", threshold,
		"matches", len(passages),
	)
	return passages, nil
}

// cosineSimilarity computes the cosine similarity between two vectors.
// Returns 0 for mismatched lengths or zero magnitude.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
