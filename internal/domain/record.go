package domain

import (
	"fmt"
	"strings"
	"time"
)

// Category identifies one of the six clinical record kinds.
type Category string

// Clinical record categories (FHIR resource vocabulary).
const (
	CategoryCondition    Category = "condition"
	CategoryObservation  Category = "observation"
	CategoryProcedure    Category = "procedure"
	CategoryAllergy      Category = "allergy"
	CategoryImmunization Category = "immunization"
	CategoryCarePlan     Category = "careplan"
)

// Categories lists all categories in clinical-importance order: when a prompt
// budget must be split, later entries are truncated first.
var Categories = [...]Category{
	CategoryCondition,
	CategoryObservation,
	CategoryProcedure,
	CategoryAllergy,
	CategoryImmunization,
	CategoryCarePlan,
}

// ParseCategory validates a category string.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if Category(s) == c {
			return c, nil
		}
	}
	return "", fmt.Errorf("unrecognized clinical category %q", s)
}

// Importance returns the category's rank in the truncation order (0 = most
// important, kept longest under a prompt budget).
func (c Category) Importance() int {
	for i, cat := range Categories {
		if c == cat {
			return i
		}
	}
	return len(Categories)
}

// Title returns the human-readable section heading for a category.
func (c Category) Title() string {
	switch c {
	case CategoryCondition:
		return "Conditions"
	case CategoryObservation:
		return "Observations"
	case CategoryProcedure:
		return "Procedures"
	case CategoryAllergy:
		return "Allergies"
	case CategoryImmunization:
		return "Immunizations"
	case CategoryCarePlan:
		return "Care Plans"
	default:
		return string(c)
	}
}

// Record is the shared capability of all clinical record variants. Records
// reference exactly one patient and are read-only to this service.
type Record interface {
	Category() Category
	RecordedAt() time.Time
	// Fingerprint identifies the (category, payload, timestamp) tuple for
	// deduplication of doubly-ingested records.
	Fingerprint() string
}

// RecordMeta holds the fields common to every variant.
type RecordMeta struct {
	ID        string    `yaml:"-"`
	PatientID string    `yaml:"-"`
	Recorded  time.Time `yaml:"recorded"`
}

// RecordedAt returns the recency-ordering timestamp.
func (m RecordMeta) RecordedAt() time.Time { return m.Recorded }

func fingerprint(c Category, recorded time.Time, payload ...string) string {
	return string(c) + "|" + strings.Join(payload, "|") + "|" + recorded.UTC().Format(time.RFC3339)
}

// Allergy is an AllergyIntolerance record.
type Allergy struct {
	RecordMeta `yaml:",inline"`
	Code       string `yaml:"code"`
	Display    string `yaml:"display"`
	Reaction   string `yaml:"reaction,omitempty"`
	Severity   string `yaml:"severity,omitempty"`
}

func (a Allergy) Category() Category { return CategoryAllergy }

func (a Allergy) Fingerprint() string {
	return fingerprint(CategoryAllergy, a.Recorded, a.Code, a.Display, a.Reaction, a.Severity)
}

// Immunization is an administered vaccine record.
type Immunization struct {
	RecordMeta `yaml:",inline"`
	Code       string `yaml:"code"`
	Display    string `yaml:"display"`
	Status     string `yaml:"status,omitempty"`
}

func (i Immunization) Category() Category { return CategoryImmunization }

func (i Immunization) Fingerprint() string {
	return fingerprint(CategoryImmunization, i.Recorded, i.Code, i.Display, i.Status)
}

// Observation is a measured value with unit.
type Observation struct {
	RecordMeta `yaml:",inline"`
	Code       string `yaml:"code"`
	Display    string `yaml:"display"`
	Value      string `yaml:"value,omitempty"`
	Unit       string `yaml:"unit,omitempty"`
}

func (o Observation) Category() Category { return CategoryObservation }

func (o Observation) Fingerprint() string {
	return fingerprint(CategoryObservation, o.Recorded, o.Code, o.Display, o.Value, o.Unit)
}

// Condition is a diagnosed condition with onset.
type Condition struct {
	RecordMeta     `yaml:",inline"`
	Code           string     `yaml:"code"`
	Display        string     `yaml:"display"`
	ClinicalStatus string     `yaml:"clinical_status,omitempty"`
	Onset          *time.Time `yaml:"onset,omitempty"`
}

func (c Condition) Category() Category { return CategoryCondition }

func (c Condition) Fingerprint() string {
	onset := ""
	if c.Onset != nil {
		onset = c.Onset.UTC().Format(time.RFC3339)
	}
	return fingerprint(CategoryCondition, c.Recorded, c.Code, c.Display, c.ClinicalStatus, onset)
}

// Procedure is a performed procedure record.
type Procedure struct {
	RecordMeta `yaml:",inline"`
	Code       string `yaml:"code"`
	Display    string `yaml:"display"`
	Status     string `yaml:"status,omitempty"`
}

func (p Procedure) Category() Category { return CategoryProcedure }

func (p Procedure) Fingerprint() string {
	return fingerprint(CategoryProcedure, p.Recorded, p.Code, p.Display, p.Status)
}

// CarePlan is an active or historical care plan.
type CarePlan struct {
	RecordMeta `yaml:",inline"`
	Code       string `yaml:"code"`
	Display    string `yaml:"display"`
	Status     string `yaml:"status,omitempty"`
}

func (c CarePlan) Category() Category { return CategoryCarePlan }

func (c CarePlan) Fingerprint() string {
	return fingerprint(CategoryCarePlan, c.Recorded, c.Code, c.Display, c.Status)
}
