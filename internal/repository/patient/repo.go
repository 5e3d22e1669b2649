// Package patient maps patient hash entries in the store to domain patients
// and executes the hybrid ranked retrieval.
package patient

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/carelane/patdex/internal/db"
	"github.com/carelane/patdex/internal/domain"
	"github.com/carelane/patdex/internal/domain/search/filter"
	"github.com/carelane/patdex/internal/domain/search/result"
)

// Store layout for patient hashes written by the ingestion pipeline.
const (
	keyPrefix = domain.KeyPrefix + "patient:"
	indexName = keyPrefix + "idx"

	fieldDescription  = "description"
	fieldVector       = "vector"
	fieldFullName     = "full_name"
	fieldGender       = filter.FieldGender
	fieldDeceased     = filter.FieldDeceased
	fieldBirthDate    = filter.FieldBirthDate
	fieldDeceasedDate = "deceased_date"
	fieldAgeAtDeath   = filter.FieldAgeAtDeath
	fieldMRN          = "medical_record_number"
	fieldSSN          = "social_security_number"
	fieldAddress      = "address"
	fieldCity         = "city"
	fieldState        = "state"
	fieldCountry      = "country"
	fieldPhone        = "phone"
	fieldEmail        = "email"
)

// profileFields is everything returned by search and profile reads; the
// stored vector is never shipped back.
var profileFields = []string{
	fieldDescription, fieldFullName, fieldGender, fieldDeceased,
	fieldBirthDate, fieldDeceasedDate, fieldAgeAtDeath,
	fieldMRN, fieldSSN, fieldAddress, fieldCity, fieldState, fieldCountry,
	fieldPhone, fieldEmail,
}

// store is the consumer interface for patient operations.
type store interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchSorted(ctx context.Context, q *db.SortedQuery) (*db.SearchResult, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// HNSWConfig carries index build parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Repo implements the search usecase's patient retrieval contract.
type Repo struct {
	store     store
	vectorDim int
	hnsw      HNSWConfig
}

// New creates a patient repository.
func New(s store, vectorDim int) *Repo {
	return &Repo{store: s, vectorDim: vectorDim}
}

// WithHNSW overrides HNSW index build parameters.
func (r *Repo) WithHNSW(cfg HNSWConfig) *Repo {
	r.hnsw = cfg
	return r
}

// EnsureIndex creates the patient FT index when missing. Patient data itself
// is owned by the ingestion pipeline; only the index declaration lives here.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, indexName)
	if err != nil {
		return fmt.Errorf("check patient index: %w", err)
	}
	if exists {
		return nil
	}

	def := db.NewIndex(indexName).
		Prefix(keyPrefix).
		Tag(fieldGender).
		Tag(fieldDeceased).
		Numeric(fieldBirthDate).
		Numeric(fieldAgeAtDeath).
		VectorHNSW(fieldVector, r.vectorDim, db.DistanceCosine, r.hnsw.M, r.hnsw.EFConstruct).
		MustBuild()

	if err := r.store.CreateIndex(ctx, def); err != nil && err != db.ErrIndexExists {
		return fmt.Errorf("create patient index: %w", err)
	}
	return nil
}

// SearchKNN ranks patients by similarity of the query vector to their stored
// description embeddings, restricted to the predicate, capped at k.
func (r *Repo) SearchKNN(
	ctx context.Context, vector []float32, pred filter.Predicate, k int,
) ([]result.Match, error) {
	returnFields := append([]string{"__vector_score"}, profileFields...)

	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    indexName,
		Predicate:    pred,
		Vector:       vector,
		K:            k,
		ReturnFields: returnFields,
	})
	if err != nil {
		return nil, fmt.Errorf("search patients knn: %w", err)
	}

	return parseMatches(sr, true)
}

// List returns up to k patients matching the predicate without similarity
// ranking (empty-query search); scores are zero.
func (r *Repo) List(ctx context.Context, pred filter.Predicate, k int) ([]result.Match, error) {
	sr, err := r.store.SearchSorted(ctx, &db.SortedQuery{
		IndexName:    indexName,
		Predicate:    pred,
		SortBy:       fieldBirthDate,
		Descending:   false,
		Limit:        k,
		ReturnFields: profileFields,
	})
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}

	return parseMatches(sr, false)
}

// Get resolves a patient by identifier.
func (r *Repo) Get(ctx context.Context, id string) (domain.Patient, error) {
	fields, err := r.store.HGetAll(ctx, keyPrefix+id)
	if err != nil {
		return domain.Patient{}, fmt.Errorf("get patient %s: %w", id, err)
	}
	if len(fields) == 0 {
		return domain.Patient{}, fmt.Errorf("patient %s: %w", id, domain.ErrPatientNotFound)
	}
	return parsePatient(id, fields), nil
}

func parseMatches(sr *db.SearchResult, scored bool) ([]result.Match, error) {
	if sr == nil || sr.Total == 0 {
		return nil, nil
	}

	matches := make([]result.Match, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		id := entry.Key
		if len(id) > len(keyPrefix) && id[:len(keyPrefix)] == keyPrefix {
			id = id[len(keyPrefix):]
		}
		score := 0.0
		if scored {
			score = entry.Score
		}
		matches = append(matches, result.New(parsePatient(id, entry.Fields), score))
	}
	return matches, nil
}

func parsePatient(id string, m map[string]string) domain.Patient {
	p := domain.Patient{
		ID:                   id,
		FullName:             m[fieldFullName],
		Gender:               domain.Gender(m[fieldGender]),
		Deceased:             m[fieldDeceased] == "1",
		Description:          m[fieldDescription],
		MedicalRecordNumber:  m[fieldMRN],
		SocialSecurityNumber: m[fieldSSN],
		Address:              m[fieldAddress],
		City:                 m[fieldCity],
		State:                m[fieldState],
		Country:              m[fieldCountry],
		Phone:                m[fieldPhone],
		Email:                m[fieldEmail],
	}

	if ts := parseUnix(m[fieldBirthDate]); ts != nil {
		p.BirthDate = *ts
	}
	if ts := parseUnix(m[fieldDeceasedDate]); ts != nil {
		p.DeceasedDate = ts
	}

	return p
}

func parseUnix(s string) *time.Time {
	if s == "" {
		return nil
	}
	sec, err := strconv.ParseFloat(s, 64)
	if err != nil || sec == 0 {
		return nil
	}
	t := time.Unix(int64(sec), 0).UTC()
	return &t
}
