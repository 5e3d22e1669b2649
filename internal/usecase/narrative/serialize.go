package narrative

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/carelane/patdex/internal/domain"
	domev "github.com/carelane/patdex/internal/domain/evidence"
)

// demographics is the YAML shape of the patient header in the prompt.
type demographics struct {
	FullName     string `yaml:"full_name"`
	Gender       string `yaml:"gender"`
	BirthDate    string `yaml:"birthdate"`
	Age          int    `yaml:"age"`
	Deceased     bool   `yaml:"deceased"`
	DeceasedDate string `yaml:"deceased_date,omitempty"`
	Country      string `yaml:"country,omitempty"`
	State        string `yaml:"state,omitempty"`
	City         string `yaml:"city,omitempty"`
}

// serializeBundle renders the evidence bundle as bounded YAML-ish text:
// a demographics block followed by one section per category in
// clinical-importance order.
//
// When the rendering exceeds budgetChars, records are dropped one at a time
// from the least important category that still has records, so conditions
// survive longest and care plans are trimmed first. Categories are only ever
// truncated independently; the request as a whole is never dropped.
func serializeBundle(b *domev.Bundle, budgetChars int, now time.Time) string {
	caps := make(map[domain.Category]int, len(domain.Categories))
	for _, cat := range domain.Categories {
		caps[cat] = b.Count(cat)
	}

	text := render(b, caps, now)
	if budgetChars <= 0 {
		return text
	}

	for len(text) > budgetChars {
		if !dropOne(caps) {
			break
		}
		text = render(b, caps, now)
	}
	return text
}

// dropOne removes one record slot from the least important non-empty
// category. Returns false when every category is already empty.
func dropOne(caps map[domain.Category]int) bool {
	for i := len(domain.Categories) - 1; i >= 0; i-- {
		cat := domain.Categories[i]
		if caps[cat] > 0 {
			caps[cat]--
			return true
		}
	}
	return false
}

func render(b *domev.Bundle, caps map[domain.Category]int, now time.Time) string {
	var sb strings.Builder

	sb.WriteString("### Patient Data\n\nDemographics:\n")
	sb.WriteString(marshalYAML(demographicsOf(b.Demography, now)))

	for _, cat := range domain.Categories {
		ce := b.Categories[cat]
		sb.WriteString("\n")
		sb.WriteString(cat.Title())
		sb.WriteString(":\n")

		switch {
		case ce.Failed:
			sb.WriteString("records unavailable\n")
		case len(ce.Records) == 0 || caps[cat] == 0:
			sb.WriteString("no records\n")
		default:
			records := ce.Records
			if len(records) > caps[cat] {
				records = records[:caps[cat]]
			}
			sb.WriteString(marshalYAML(records))
		}
	}

	return sb.String()
}

func demographicsOf(p domain.Patient, now time.Time) demographics {
	d := demographics{
		FullName:  p.FullName,
		Gender:    string(p.Gender),
		BirthDate: p.BirthDate.Format("2006-01-02"),
		Age:       p.Age(now),
		Deceased:  p.Deceased,
		Country:   p.Country,
		State:     p.State,
		City:      p.City,
	}
	if p.DeceasedDate != nil {
		d.DeceasedDate = p.DeceasedDate.Format("2006-01-02")
	}
	return d
}

func marshalYAML(v any) string {
	out, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Sprintf("serialization error: %v\n", err)
	}
	return string(out)
}
