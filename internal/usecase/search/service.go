// Package search implements the hybrid query planner: it composes the query
// embedding and the compiled structured predicate into one ranked retrieval.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/carelane/patdex/internal/domain"
	"github.com/carelane/patdex/internal/domain/search/filter"
	"github.com/carelane/patdex/internal/domain/search/result"
)

// Limits bounds the result cap.
type Limits struct {
	Default int
	Max     int
}

// Service plans and executes patient searches.
type Service struct {
	repo      Repository
	embed     Embedder
	vectorDim int
	limits    Limits
	now       func() time.Time
}

// New creates a search service. vectorDim is the index dimension used to
// reject mis-sized provider output before it reaches the store.
func New(repo Repository, embed Embedder, vectorDim int, limits Limits) *Service {
	return &Service{
		repo:      repo,
		embed:     embed,
		vectorDim: vectorDim,
		limits:    limits,
		now:       time.Now,
	}
}

// WithClock overrides the clock used for age-range compilation (tests).
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Search returns up to limit patients ranked by similarity to the query,
// restricted to the filter. An empty query skips embedding and returns a
// filter-only listing with zero scores.
//
// Results are ordered by descending score with ties broken by ascending
// patient ID, so an identical search against an unchanged store returns
// identical output.
func (s *Service) Search(
	ctx context.Context, query string, f filter.Filter, limit int,
) ([]result.Match, error) {
	if limit <= 0 {
		limit = s.limits.Default
	}
	if limit > s.limits.Max {
		limit = s.limits.Max
	}

	pred, err := filter.Compile(f, s.now())
	if err != nil {
		return nil, fmt.Errorf("compile filter: %w", err)
	}

	var matches []result.Match
	if strings.TrimSpace(query) == "" {
		matches, err = s.repo.List(ctx, pred, limit)
		if err != nil {
			return nil, fmt.Errorf("list patients: %w", err)
		}
	} else {
		matches, err = s.searchRanked(ctx, query, pred, limit)
		if err != nil {
			return nil, err
		}
	}

	result.Rank(matches)
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (s *Service) searchRanked(
	ctx context.Context, query string, pred filter.Predicate, limit int,
) ([]result.Match, error) {
	emb, err := s.embed.Embed(ctx, query)
	if err != nil {
		// A provider failure must surface, never degrade to an empty
		// result: that would hide a misconfiguration.
		if !errors.Is(err, domain.ErrEmbeddingUnavailable) {
			err = fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
		}
		return nil, fmt.Errorf("vectorize query: %w", err)
	}

	if s.vectorDim > 0 && len(emb.Embedding) != s.vectorDim {
		return nil, fmt.Errorf("provider returned %d dimensions, index expects %d: %w: %w",
			len(emb.Embedding), s.vectorDim, domain.ErrVectorDimMismatch, domain.ErrEmbeddingUnavailable)
	}

	domain.UsageFromContext(ctx).AddTokens(emb.TotalTokens)

	matches, err := s.repo.SearchKNN(ctx, emb.Embedding, pred, limit)
	if err != nil {
		return nil, fmt.Errorf("search knn: %w", err)
	}
	return matches, nil
}
