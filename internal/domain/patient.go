package domain

import (
	"fmt"
	"time"
)

// Gender is the fixed demographic enumeration used by patient records and filters.
type Gender string

// Recognized gender values (FHIR administrative-gender value set).
const (
	GenderMale    Gender = "male"
	GenderFemale  Gender = "female"
	GenderOther   Gender = "other"
	GenderUnknown Gender = "unknown"
)

// ParseGender validates a gender string against the recognized set.
func ParseGender(s string) (Gender, error) {
	switch g := Gender(s); g {
	case GenderMale, GenderFemale, GenderOther, GenderUnknown:
		return g, nil
	default:
		return "", fmt.Errorf("unrecognized gender %q: %w", s, ErrInvalidFilter)
	}
}

// Patient is a read-only demographic record populated by the ingestion
// pipeline. The embedding over Description is written once at ingestion and
// never mutated; its dimension must match the query embedder's output.
type Patient struct {
	ID           string
	FullName     string
	Gender       Gender
	BirthDate    time.Time
	Deceased     bool
	DeceasedDate *time.Time
	Description  string

	// Profile fields carried for display only; no search semantics.
	MedicalRecordNumber  string
	SocialSecurityNumber string
	Address              string
	City                 string
	State                string
	Country              string
	Phone                string
	Email                string
}

// AgeAt returns the patient's age in whole years at the given instant.
func (p *Patient) AgeAt(at time.Time) int {
	years := at.Year() - p.BirthDate.Year()
	anniversary := p.BirthDate.AddDate(years, 0, 0)
	if anniversary.After(at) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}

// Age returns the patient's current age, computed against the recorded death
// date for deceased patients and against now for living ones.
func (p *Patient) Age(now time.Time) int {
	if p.Deceased && p.DeceasedDate != nil {
		return p.AgeAt(*p.DeceasedDate)
	}
	return p.AgeAt(now)
}
