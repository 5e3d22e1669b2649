// Package result holds ranked search hits.
package result

import (
	"sort"

	"github.com/carelane/patdex/internal/domain"
)

// Match is a single ranked search hit.
type Match struct {
	patient domain.Patient
	score   float64
}

// New creates a ranked match.
func New(patient domain.Patient, score float64) Match {
	return Match{patient: patient, score: score}
}

// Patient returns the matched patient.
func (m *Match) Patient() domain.Patient { return m.patient }

// Score returns the similarity score.
func (m *Match) Score() float64 { return m.score }

// Rank orders matches by descending score, breaking ties by ascending patient
// ID so repeated identical queries yield identical output.
func Rank(matches []Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].patient.ID < matches[j].patient.ID
	})
}
