// Package evidence implements the record aggregator: it assembles the capped,
// deduplicated, per-category evidence bundle for one patient.
package evidence

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/carelane/patdex/internal/domain"
	domev "github.com/carelane/patdex/internal/domain/evidence"
	"github.com/carelane/patdex/internal/logger"
)

// Service aggregates clinical evidence bundles.
type Service struct {
	patients       PatientReader
	records        RecordReader
	maxPerCategory int
}

// New creates an evidence service. maxPerCategory is the configured M.
func New(patients PatientReader, records RecordReader, maxPerCategory int) *Service {
	return &Service{
		patients:       patients,
		records:        records,
		maxPerCategory: maxPerCategory,
	}
}

// MaxPerCategory returns the configured per-category cap.
func (s *Service) MaxPerCategory() int { return s.maxPerCategory }

// Patient resolves a patient's demographics without touching the records.
func (s *Service) Patient(ctx context.Context, patientID string) (domain.Patient, error) {
	patient, err := s.patients.Get(ctx, patientID)
	if err != nil {
		return domain.Patient{}, fmt.Errorf("resolve patient: %w", err)
	}
	return patient, nil
}

// Aggregate builds the evidence bundle for a patient. maxOverride lowers the
// per-category cap for this call when positive; it can never raise it above
// the configured M.
//
// A failed category fetch is recorded inside the bundle instead of aborting
// the aggregation; callers can always distinguish an empty category from a
// failed one.
func (s *Service) Aggregate(ctx context.Context, patientID string, maxOverride int) (*domev.Bundle, error) {
	patient, err := s.patients.Get(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("resolve patient: %w", err)
	}

	maxRecords := s.maxPerCategory
	if maxOverride > 0 && maxOverride < maxRecords {
		maxRecords = maxOverride
	}

	bundle := domev.NewBundle(patient)
	log := logger.FromContext(ctx)

	for _, cat := range domain.Categories {
		// Fetch headroom above the cap so duplicate rows collapsing in
		// dedup do not leave the category short.
		records, err := s.records.FetchCategory(ctx, patientID, cat, maxRecords*2)
		if err != nil {
			log.Warn("category fetch failed",
				zap.String("patient_id", patientID),
				zap.String("category", string(cat)),
				zap.Error(err),
			)
			bundle.Fail(cat, err)
			continue
		}
		bundle.Put(cat, records, maxRecords)
	}

	return bundle, nil
}
