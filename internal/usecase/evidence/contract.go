package evidence

import (
	"context"

	"github.com/carelane/patdex/internal/domain"
)

// PatientReader resolves patient identifiers.
type PatientReader interface {
	Get(ctx context.Context, id string) (domain.Patient, error)
}

// RecordReader fetches one category of clinical records for a patient,
// most recent first, capped at limit.
type RecordReader interface {
	FetchCategory(ctx context.Context, patientID string, cat domain.Category, limit int) ([]domain.Record, error)
}
