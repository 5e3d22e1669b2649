package search

import (
	"context"

	"github.com/carelane/patdex/internal/domain"
	"github.com/carelane/patdex/internal/domain/search/filter"
	"github.com/carelane/patdex/internal/domain/search/result"
)

// Repository defines the storage contract for patient retrieval.
type Repository interface {
	// SearchKNN ranks patients by vector similarity, restricted to the
	// predicate, capped at k.
	SearchKNN(ctx context.Context, vector []float32, pred filter.Predicate, k int) ([]result.Match, error)

	// List returns up to k patients matching the predicate without
	// similarity ranking.
	List(ctx context.Context, pred filter.Predicate, k int) ([]result.Match, error)
}

// Embedder vectorizes the query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
