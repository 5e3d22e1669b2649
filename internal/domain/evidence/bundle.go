// Package evidence holds the per-category clinical evidence bundle assembled
// for a single narrative request.
package evidence

import (
	"sort"

	"github.com/carelane/patdex/internal/domain"
)

// CategoryEvidence is one category's slice of a bundle. A Failed category is
// distinguishable from an empty one: the fetch errored and the records are
// unknown, not absent.
type CategoryEvidence struct {
	Records []domain.Record
	Failed  bool
	Error   string
}

// Bundle maps every clinical category to its capped, deduplicated,
// most-recent-first record sequence. Bundles are built per request and never
// cached or shared.
type Bundle struct {
	PatientID  string
	Demography domain.Patient
	Categories map[domain.Category]CategoryEvidence
}

// NewBundle creates a bundle with all categories present and empty, so "no
// data" is never confused with "not queried".
func NewBundle(patient domain.Patient) *Bundle {
	cats := make(map[domain.Category]CategoryEvidence, len(domain.Categories))
	for _, c := range domain.Categories {
		cats[c] = CategoryEvidence{Records: []domain.Record{}}
	}
	return &Bundle{
		PatientID:  patient.ID,
		Demography: patient,
		Categories: cats,
	}
}

// Put stores a category's records: duplicates by fingerprint collapse to one
// entry, ordering is most-recent-first, and the sequence is capped at max.
func (b *Bundle) Put(cat domain.Category, records []domain.Record, max int) {
	seen := make(map[string]struct{}, len(records))
	deduped := make([]domain.Record, 0, len(records))
	for _, r := range records {
		fp := r.Fingerprint()
		if _, ok := seen[fp]; ok {
			continue
		}
		seen[fp] = struct{}{}
		deduped = append(deduped, r)
	}

	sort.SliceStable(deduped, func(i, j int) bool {
		return deduped[i].RecordedAt().After(deduped[j].RecordedAt())
	})

	if max >= 0 && len(deduped) > max {
		deduped = deduped[:max]
	}
	b.Categories[cat] = CategoryEvidence{Records: deduped}
}

// Fail marks a category as unfetchable without aborting the rest of the
// aggregation; a partial clinical picture is still useful.
func (b *Bundle) Fail(cat domain.Category, err error) {
	b.Categories[cat] = CategoryEvidence{Records: []domain.Record{}, Failed: true, Error: err.Error()}
}

// Count returns the number of records held for a category.
func (b *Bundle) Count(cat domain.Category) int {
	return len(b.Categories[cat].Records)
}

// TotalRecords returns the record count across all categories.
func (b *Bundle) TotalRecords() int {
	n := 0
	for _, c := range domain.Categories {
		n += b.Count(c)
	}
	return n
}
