// Package record maps clinical record hashes in the store to the domain's
// tagged-union record variants.
package record

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/carelane/patdex/internal/db"
	"github.com/carelane/patdex/internal/domain"
	"github.com/carelane/patdex/internal/domain/search/filter"
)

// Store layout for clinical record hashes written by the ingestion pipeline.
const (
	keyPrefix = domain.KeyPrefix + "record:"
	indexName = keyPrefix + "idx"

	fieldPatientID      = "patient_id"
	fieldCategory       = "category"
	fieldRecordedAt     = "recorded_at"
	fieldCode           = "code"
	fieldDisplay        = "display"
	fieldValue          = "value"
	fieldUnit           = "unit"
	fieldStatus         = "status"
	fieldSeverity       = "severity"
	fieldReaction       = "reaction"
	fieldClinicalStatus = "clinical_status"
	fieldOnset          = "onset"
)

var returnFields = []string{
	fieldPatientID, fieldCategory, fieldRecordedAt,
	fieldCode, fieldDisplay, fieldValue, fieldUnit, fieldStatus,
	fieldSeverity, fieldReaction, fieldClinicalStatus, fieldOnset,
}

// store is the consumer interface for record operations.
type store interface {
	SearchSorted(ctx context.Context, q *db.SortedQuery) (*db.SearchResult, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Repo implements the evidence usecase's record retrieval contract.
type Repo struct {
	store store
}

// New creates a record repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// EnsureIndex creates the record FT index when missing.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, indexName)
	if err != nil {
		return fmt.Errorf("check record index: %w", err)
	}
	if exists {
		return nil
	}

	def := db.NewIndex(indexName).
		Prefix(keyPrefix).
		Tag(fieldPatientID).
		Tag(fieldCategory).
		Numeric(fieldRecordedAt).
		MustBuild()

	if err := r.store.CreateIndex(ctx, def); err != nil && err != db.ErrIndexExists {
		return fmt.Errorf("create record index: %w", err)
	}
	return nil
}

// FetchCategory returns up to limit records of one category for a patient,
// most recent first.
func (r *Repo) FetchCategory(
	ctx context.Context, patientID string, cat domain.Category, limit int,
) ([]domain.Record, error) {
	patientCond, err := filter.NewMatch(fieldPatientID, patientID)
	if err != nil {
		return nil, fmt.Errorf("patient condition: %w", err)
	}
	categoryCond, err := filter.NewMatch(fieldCategory, string(cat))
	if err != nil {
		return nil, fmt.Errorf("category condition: %w", err)
	}

	sr, err := r.store.SearchSorted(ctx, &db.SortedQuery{
		IndexName:    indexName,
		Predicate:    filter.NewPredicate(patientCond, categoryCond),
		SortBy:       fieldRecordedAt,
		Descending:   true,
		Limit:        limit,
		ReturnFields: returnFields,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s records for %s: %w", cat, patientID, err)
	}

	if sr == nil || sr.Total == 0 {
		return nil, nil
	}

	records := make([]domain.Record, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		id := entry.Key
		if len(id) > len(keyPrefix) && id[:len(keyPrefix)] == keyPrefix {
			id = id[len(keyPrefix):]
		}
		rec, err := parseRecord(id, cat, entry.Fields)
		if err != nil {
			// A malformed row is skipped, not fatal: the rest of the
			// category remains usable.
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseRecord(id string, cat domain.Category, m map[string]string) (domain.Record, error) {
	recorded, err := parseUnix(m[fieldRecordedAt])
	if err != nil {
		return nil, fmt.Errorf("record %s: bad recorded_at %q", id, m[fieldRecordedAt])
	}

	meta := domain.RecordMeta{
		ID:        id,
		PatientID: m[fieldPatientID],
		Recorded:  recorded,
	}

	switch cat {
	case domain.CategoryAllergy:
		return domain.Allergy{
			RecordMeta: meta,
			Code:       m[fieldCode],
			Display:    m[fieldDisplay],
			Reaction:   m[fieldReaction],
			Severity:   m[fieldSeverity],
		}, nil
	case domain.CategoryImmunization:
		return domain.Immunization{
			RecordMeta: meta,
			Code:       m[fieldCode],
			Display:    m[fieldDisplay],
			Status:     m[fieldStatus],
		}, nil
	case domain.CategoryObservation:
		return domain.Observation{
			RecordMeta: meta,
			Code:       m[fieldCode],
			Display:    m[fieldDisplay],
			Value:      m[fieldValue],
			Unit:       m[fieldUnit],
		}, nil
	case domain.CategoryCondition:
		cond := domain.Condition{
			RecordMeta:     meta,
			Code:           m[fieldCode],
			Display:        m[fieldDisplay],
			ClinicalStatus: m[fieldClinicalStatus],
		}
		if onset, err := parseUnix(m[fieldOnset]); err == nil && !onset.IsZero() {
			cond.Onset = &onset
		}
		return cond, nil
	case domain.CategoryProcedure:
		return domain.Procedure{
			RecordMeta: meta,
			Code:       m[fieldCode],
			Display:    m[fieldDisplay],
			Status:     m[fieldStatus],
		}, nil
	case domain.CategoryCarePlan:
		return domain.CarePlan{
			RecordMeta: meta,
			Code:       m[fieldCode],
			Display:    m[fieldDisplay],
			Status:     m[fieldStatus],
		}, nil
	default:
		return nil, fmt.Errorf("record %s: unknown category %q", id, cat)
	}
}

func parseUnix(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	sec, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(int64(sec), 0).UTC(), nil
}
