package db

import "github.com/carelane/patdex/internal/domain/search/filter"

// KNNQuery is the input for vector similarity search with structured
// pre-filtering.
type KNNQuery struct {
	IndexName    string
	Predicate    filter.Predicate
	Vector       []float32
	K            int
	ReturnFields []string
}

// SortedQuery is the input for a predicate-filtered listing ordered by a
// numeric field (record retrieval by recency).
type SortedQuery struct {
	IndexName    string
	Predicate    filter.Predicate
	SortBy       string
	Descending   bool
	Limit        int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
