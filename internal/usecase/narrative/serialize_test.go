package narrative

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/carelane/patdex/internal/domain"
	domev "github.com/carelane/patdex/internal/domain/evidence"
)

var serializeNow = time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

func testBundle() *domev.Bundle {
	birth := time.Date(1960, 3, 12, 0, 0, 0, 0, time.UTC)
	b := domev.NewBundle(domain.Patient{
		ID:        "p1",
		FullName:  "Grace Murray",
		Gender:    domain.GenderFemale,
		BirthDate: birth,
	})
	return b
}

func fill(b *domev.Bundle, cat domain.Category, n int) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	records := make([]domain.Record, n)
	for i := range records {
		records[i] = domain.Observation{
			RecordMeta: domain.RecordMeta{Recorded: base.AddDate(0, 0, i)},
			Code:       fmt.Sprintf("%s-%d", cat, i),
			Display:    "record for " + string(cat),
		}
	}
	b.Put(cat, records, n)
}

func TestSerialize_AllSectionsPresent(t *testing.T) {
	b := testBundle()
	text := serializeBundle(b, 0, serializeNow)

	if !strings.Contains(text, "Demographics:") {
		t.Error("missing demographics block")
	}
	for _, cat := range domain.Categories {
		if !strings.Contains(text, cat.Title()+":") {
			t.Errorf("missing section for %q", cat)
		}
	}
	if !strings.Contains(text, "full_name: Grace Murray") {
		t.Error("missing patient name in demographics")
	}
}

func TestSerialize_EmptyVsFailed(t *testing.T) {
	b := testBundle()
	b.Fail(domain.CategoryAllergy, fmt.Errorf("index offline"))

	text := serializeBundle(b, 0, serializeNow)

	if !strings.Contains(text, "records unavailable") {
		t.Error("failed category should render as unavailable")
	}
	if !strings.Contains(text, "no records") {
		t.Error("empty categories should render as no records")
	}
}

func TestSerialize_Deterministic(t *testing.T) {
	b := testBundle()
	fill(b, domain.CategoryCondition, 3)
	fill(b, domain.CategoryObservation, 5)

	first := serializeBundle(b, 0, serializeNow)
	second := serializeBundle(b, 0, serializeNow)
	if first != second {
		t.Error("serialization must be deterministic for an identical bundle")
	}
}

func TestSerialize_BudgetTruncatesLeastImportantFirst(t *testing.T) {
	b := testBundle()
	fill(b, domain.CategoryCondition, 4)
	fill(b, domain.CategoryCarePlan, 4)

	full := serializeBundle(b, 0, serializeNow)
	truncated := serializeBundle(b, len(full)-100, serializeNow)

	if len(truncated) >= len(full) {
		t.Fatal("expected truncation to shrink the output")
	}

	// Conditions survive; care plans are trimmed first.
	condCount := strings.Count(truncated, "record for condition")
	planCount := strings.Count(truncated, "record for careplan")
	if condCount != 4 {
		t.Errorf("expected all 4 conditions kept, got %d", condCount)
	}
	if planCount >= 4 {
		t.Errorf("expected care plans trimmed, still %d", planCount)
	}
}

func TestSerialize_BudgetExhaustsGracefully(t *testing.T) {
	b := testBundle()
	fill(b, domain.CategoryObservation, 2)

	// Budget smaller than even the empty skeleton: every record is dropped
	// and the skeleton is returned as-is.
	text := serializeBundle(b, 10, serializeNow)
	if !strings.Contains(text, "Demographics:") {
		t.Error("skeleton must survive an unsatisfiable budget")
	}
	if strings.Contains(text, "record for observation") {
		t.Error("expected all records dropped under a tiny budget")
	}
}

func TestDemographics_DeceasedDate(t *testing.T) {
	b := testBundle()
	died := time.Date(2020, 5, 1, 0, 0, 0, 0, time.UTC)
	b.Demography.Deceased = true
	b.Demography.DeceasedDate = &died

	text := serializeBundle(b, 0, serializeNow)
	if !strings.Contains(text, "deceased: true") {
		t.Error("missing deceased flag")
	}
	if !strings.Contains(text, "deceased_date: \"2020-05-01\"") &&
		!strings.Contains(text, "deceased_date: 2020-05-01") {
		t.Error("missing deceased date")
	}
	// Age freezes at death.
	if !strings.Contains(text, "age: 60") {
		t.Error("expected age computed against the death date")
	}
}
