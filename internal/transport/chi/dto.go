package chi

import (
	"time"

	"github.com/carelane/patdex/internal/domain"
	domev "github.com/carelane/patdex/internal/domain/evidence"
	"github.com/carelane/patdex/internal/domain/search/result"
)

// Error codes returned in error response bodies.
const (
	codeBadRequest           = "bad_request"
	codeInvalidFilter        = "invalid_filter"
	codeUnknownModel         = "unknown_model"
	codePatientNotFound      = "patient_not_found"
	codeEmbeddingUnavailable = "embedding_unavailable"
	codeGenerationFailed     = "generation_failed"
	codeInternalError        = "internal_error"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type searchFilters struct {
	Gender   *string `json:"gender,omitempty"`
	Deceased *bool   `json:"deceased,omitempty"`
	MinAge   *int    `json:"min_age,omitempty"`
	MaxAge   *int    `json:"max_age,omitempty"`
}

type searchRequest struct {
	Query   string         `json:"query"`
	Filters *searchFilters `json:"filters,omitempty"`
	Limit   int            `json:"limit,omitempty"`
}

type patientResponse struct {
	ID           string     `json:"id"`
	FullName     string     `json:"full_name"`
	Gender       string     `json:"gender"`
	BirthDate    string     `json:"birth_date"`
	Age          int        `json:"age"`
	Deceased     bool       `json:"deceased"`
	DeceasedDate *string    `json:"deceased_date,omitempty"`
	Description  string     `json:"description,omitempty"`
	MRN          string     `json:"mrn,omitempty"`
	SSN          string     `json:"ssn,omitempty"`
	Address      string     `json:"address,omitempty"`
	City         string     `json:"city,omitempty"`
	State        string     `json:"state,omitempty"`
	Country      string     `json:"country,omitempty"`
	Phone        string     `json:"phone,omitempty"`
	Email        string     `json:"email,omitempty"`
}

type searchResultItem struct {
	Patient patientResponse `json:"patient"`
	Score   float64         `json:"score"`
}

type searchResponse struct {
	Items []searchResultItem `json:"items"`
	Limit int                `json:"limit"`
	Total int                `json:"total"`
}

type recordItem struct {
	Recorded       time.Time  `json:"recorded"`
	Code           string     `json:"code"`
	Display        string     `json:"display"`
	Value          string     `json:"value,omitempty"`
	Unit           string     `json:"unit,omitempty"`
	Status         string     `json:"status,omitempty"`
	Severity       string     `json:"severity,omitempty"`
	Reaction       string     `json:"reaction,omitempty"`
	ClinicalStatus string     `json:"clinical_status,omitempty"`
	Onset          *time.Time `json:"onset,omitempty"`
}

type evidenceCategory struct {
	Records []recordItem `json:"records"`
	Count   int          `json:"count"`
	Failed  bool         `json:"failed,omitempty"`
	Error   string       `json:"error,omitempty"`
}

type evidenceResponse struct {
	PatientID    string                      `json:"patient_id"`
	Patient      patientResponse             `json:"patient"`
	Categories   map[string]evidenceCategory `json:"categories"`
	TotalRecords int                         `json:"total_records"`
}

type historyRequest struct {
	Model  string `json:"model,omitempty"`
	Prompt string `json:"prompt,omitempty"`
	Stream bool   `json:"stream,omitempty"`
}

type historyResponse struct {
	Narrative string `json:"narrative"`
	Model     string `json:"model"`
}

func patientToResponse(p domain.Patient, now time.Time) patientResponse {
	resp := patientResponse{
		ID:          p.ID,
		FullName:    p.FullName,
		Gender:      string(p.Gender),
		BirthDate:   p.BirthDate.Format("2006-01-02"),
		Age:         p.Age(now),
		Deceased:    p.Deceased,
		Description: p.Description,
		MRN:         p.MedicalRecordNumber,
		SSN:         p.SocialSecurityNumber,
		Address:     p.Address,
		City:        p.City,
		State:       p.State,
		Country:     p.Country,
		Phone:       p.Phone,
		Email:       p.Email,
	}
	if p.DeceasedDate != nil {
		d := p.DeceasedDate.Format("2006-01-02")
		resp.DeceasedDate = &d
	}
	return resp
}

func matchesToResponse(matches []result.Match, limit int, now time.Time) searchResponse {
	items := make([]searchResultItem, len(matches))
	for i := range matches {
		items[i] = searchResultItem{
			Patient: patientToResponse(matches[i].Patient(), now),
			Score:   matches[i].Score(),
		}
	}
	return searchResponse{Items: items, Limit: limit, Total: len(items)}
}

func bundleToResponse(b *domev.Bundle, now time.Time) evidenceResponse {
	cats := make(map[string]evidenceCategory, len(domain.Categories))
	for _, cat := range domain.Categories {
		ce := b.Categories[cat]
		items := make([]recordItem, len(ce.Records))
		for i, r := range ce.Records {
			items[i] = recordToItem(r)
		}
		cats[string(cat)] = evidenceCategory{
			Records: items,
			Count:   len(items),
			Failed:  ce.Failed,
			Error:   ce.Error,
		}
	}
	return evidenceResponse{
		PatientID:    b.PatientID,
		Patient:      patientToResponse(b.Demography, now),
		Categories:   cats,
		TotalRecords: b.TotalRecords(),
	}
}

func recordToItem(r domain.Record) recordItem {
	switch v := r.(type) {
	case domain.Condition:
		return recordItem{
			Recorded:       v.Recorded,
			Code:           v.Code,
			Display:        v.Display,
			ClinicalStatus: v.ClinicalStatus,
			Onset:          v.Onset,
		}
	case domain.Observation:
		return recordItem{
			Recorded: v.Recorded,
			Code:     v.Code,
			Display:  v.Display,
			Value:    v.Value,
			Unit:     v.Unit,
		}
	case domain.Procedure:
		return recordItem{
			Recorded: v.Recorded,
			Code:     v.Code,
			Display:  v.Display,
			Status:   v.Status,
		}
	case domain.Allergy:
		return recordItem{
			Recorded: v.Recorded,
			Code:     v.Code,
			Display:  v.Display,
			Reaction: v.Reaction,
			Severity: v.Severity,
		}
	case domain.Immunization:
		return recordItem{
			Recorded: v.Recorded,
			Code:     v.Code,
			Display:  v.Display,
			Status:   v.Status,
		}
	case domain.CarePlan:
		return recordItem{
			Recorded: v.Recorded,
			Code:     v.Code,
			Display:  v.Display,
			Status:   v.Status,
		}
	default:
		return recordItem{Recorded: r.RecordedAt()}
	}
}
