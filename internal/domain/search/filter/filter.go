// Package filter holds the structured search filter and its compilation into
// store predicate conditions.
package filter

import (
	"fmt"
	"time"

	"github.com/carelane/patdex/internal/domain"
)

// Indexed patient fields targeted by compiled conditions.
const (
	FieldGender     = "gender"
	FieldDeceased   = "deceased"
	FieldBirthDate  = "birth_date"
	FieldAgeAtDeath = "age_at_death"
)

// Age bounds accepted by the filter.
const (
	MinAgeYears = 0
	MaxAgeYears = 120
)

// Filter is the user-supplied search filter. Every field is optional; absent
// fields impose no constraint.
type Filter struct {
	Gender   *string
	Deceased *bool
	MinAge   *int
	MaxAge   *int
}

// IsZero reports whether no constraint is set.
func (f Filter) IsZero() bool {
	return f.Gender == nil && f.Deceased == nil && f.MinAge == nil && f.MaxAge == nil
}

// NewMatch creates an exact tag match condition.
func NewMatch(key, match string) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("condition key is required")
	}
	if match == "" {
		return Condition{}, fmt.Errorf("match value is required for key %q", key)
	}
	return Condition{key: key, match: match}, nil
}

// NewPredicate builds a conjunction from explicit conditions.
func NewPredicate(conds ...Condition) Predicate {
	return Predicate{conds: conds}
}

// Condition is a single compiled clause: either a tag match or a numeric range.
type Condition struct {
	key       string
	match     string
	rangeExpr *Range
}

// Key returns the indexed field name.
func (c Condition) Key() string { return c.key }

// Match returns the exact tag value.
func (c Condition) Match() string { return c.match }

// Range returns the numeric range, nil for match conditions.
func (c Condition) Range() *Range { return c.rangeExpr }

// IsMatch reports whether this is a tag match condition.
func (c Condition) IsMatch() bool { return c.match != "" }

// IsRange reports whether this is a numeric range condition.
func (c Condition) IsRange() bool { return c.rangeExpr != nil }

// Range is a numeric interval with optional exclusive/inclusive bounds.
type Range struct {
	gt  *float64
	gte *float64
	lt  *float64
	lte *float64
}

// GT returns the lower exclusive bound.
func (r Range) GT() *float64 { return r.gt }

// GTE returns the lower inclusive bound.
func (r Range) GTE() *float64 { return r.gte }

// LT returns the upper exclusive bound.
func (r Range) LT() *float64 { return r.lt }

// LTE returns the upper inclusive bound.
func (r Range) LTE() *float64 { return r.lte }

// Predicate is the conjunction of all compiled conditions. An empty predicate
// matches every patient.
type Predicate struct {
	conds []Condition
}

// Conditions returns the compiled clauses.
func (p Predicate) Conditions() []Condition { return p.conds }

// IsEmpty reports whether the predicate is unconstrained.
func (p Predicate) IsEmpty() bool { return len(p.conds) == 0 }

// Compile translates a Filter into a store predicate at the given instant.
//
// Age bounds become a birth-date interval relative to now, so the same filter
// compiles to different predicates on different days. When Deceased=true is
// set together with an age range, the range instead targets the age-at-death
// numeric, which ingestion fixes from the recorded death date.
func Compile(f Filter, now time.Time) (Predicate, error) {
	var conds []Condition

	if f.Gender != nil {
		g, err := domain.ParseGender(*f.Gender)
		if err != nil {
			return Predicate{}, err
		}
		conds = append(conds, Condition{key: FieldGender, match: string(g)})
	}

	if f.Deceased != nil {
		v := "0"
		if *f.Deceased {
			v = "1"
		}
		conds = append(conds, Condition{key: FieldDeceased, match: v})
	}

	if f.MinAge != nil || f.MaxAge != nil {
		cond, err := compileAgeRange(f, now)
		if err != nil {
			return Predicate{}, err
		}
		conds = append(conds, cond)
	}

	return Predicate{conds: conds}, nil
}

func compileAgeRange(f Filter, now time.Time) (Condition, error) {
	minAge := MinAgeYears
	maxAge := MaxAgeYears
	if f.MinAge != nil {
		minAge = *f.MinAge
	}
	if f.MaxAge != nil {
		maxAge = *f.MaxAge
	}

	if minAge < MinAgeYears || maxAge > MaxAgeYears {
		return Condition{}, fmt.Errorf("age range [%d, %d] outside [%d, %d]: %w",
			minAge, maxAge, MinAgeYears, MaxAgeYears, domain.ErrInvalidFilter)
	}
	if minAge > maxAge {
		return Condition{}, fmt.Errorf("min age %d greater than max age %d: %w",
			minAge, maxAge, domain.ErrInvalidFilter)
	}

	if f.Deceased != nil && *f.Deceased {
		gte := float64(minAge)
		lte := float64(maxAge)
		return Condition{
			key:       FieldAgeAtDeath,
			rangeExpr: &Range{gte: &gte, lte: &lte},
		}, nil
	}

	// age >= min  =>  born on or before now - min years
	// age <= max  =>  born after now - (max+1) years
	upper := float64(now.AddDate(-minAge, 0, 0).Unix())
	lower := float64(now.AddDate(-(maxAge + 1), 0, 0).Unix())
	return Condition{
		key:       FieldBirthDate,
		rangeExpr: &Range{gt: &lower, lte: &upper},
	}, nil
}
