// Package patdex provides a thin Go client for the patdex HTTP API.
package patdex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const defaultTimeout = 30 * time.Second

// Client talks to a patdex API server.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient sets a custom http.Client (timeouts, transport).
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithAPIKey sets the Bearer token sent with every request.
func WithAPIKey(key string) Option {
	return func(cl *Client) { cl.apiKey = key }
}

// New creates a client for the API server at baseURL, e.g. "http://localhost:8080".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// APIError is a non-2xx response decoded from the server's error body.
type APIError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("patdex: %s (%d): %s", e.Code, e.Status, e.Message)
}

// SearchFilters restricts a search to matching patients. Nil fields impose no
// constraint.
type SearchFilters struct {
	Gender   *string `json:"gender,omitempty"`
	Deceased *bool   `json:"deceased,omitempty"`
	MinAge   *int    `json:"min_age,omitempty"`
	MaxAge   *int    `json:"max_age,omitempty"`
}

// SearchRequest is the body of POST /v1/search.
type SearchRequest struct {
	Query   string         `json:"query"`
	Filters *SearchFilters `json:"filters,omitempty"`
	Limit   int            `json:"limit,omitempty"`
}

// Patient is a patient profile as returned by the API.
type Patient struct {
	ID           string  `json:"id"`
	FullName     string  `json:"full_name"`
	Gender       string  `json:"gender"`
	BirthDate    string  `json:"birth_date"`
	Age          int     `json:"age"`
	Deceased     bool    `json:"deceased"`
	DeceasedDate *string `json:"deceased_date,omitempty"`
	Description  string  `json:"description,omitempty"`
	MRN          string  `json:"mrn,omitempty"`
	SSN          string  `json:"ssn,omitempty"`
	Address      string  `json:"address,omitempty"`
	City         string  `json:"city,omitempty"`
	State        string  `json:"state,omitempty"`
	Country      string  `json:"country,omitempty"`
	Phone        string  `json:"phone,omitempty"`
	Email        string  `json:"email,omitempty"`
}

// SearchResultItem is one ranked hit.
type SearchResultItem struct {
	Patient Patient `json:"patient"`
	Score   float64 `json:"score"`
}

// SearchResponse is the body of a successful search.
type SearchResponse struct {
	Items []SearchResultItem `json:"items"`
	Limit int                `json:"limit"`
	Total int                `json:"total"`
}

// Record is one clinical record inside an evidence category.
type Record struct {
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

// EvidenceCategory is one category's slice of the evidence bundle.
type EvidenceCategory struct {
	Records []Record `json:"records"`
	Count   int      `json:"count"`
	Failed  bool     `json:"failed,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// Evidence is the per-category clinical evidence bundle for one patient.
type Evidence struct {
	PatientID    string                      `json:"patient_id"`
	Patient      Patient                     `json:"patient"`
	Categories   map[string]EvidenceCategory `json:"categories"`
	TotalRecords int                         `json:"total_records"`
}

// HistoryRequest is the body of POST /v1/patients/{id}/history.
type HistoryRequest struct {
	Model  string `json:"model,omitempty"`
	Prompt string `json:"prompt,omitempty"`
}

// History is a generated clinical narrative.
type History struct {
	Narrative string `json:"narrative"`
	Model     string `json:"model"`
}

// Search runs a hybrid patient search.
func (c *Client) Search(ctx context.Context, req SearchRequest) (SearchResponse, error) {
	var resp SearchResponse
	err := c.doJSON(ctx, http.MethodPost, "/v1/search", req, &resp)
	return resp, err
}

// Patient fetches one patient's profile.
func (c *Client) Patient(ctx context.Context, id string) (Patient, error) {
	var resp Patient
	err := c.doJSON(ctx, http.MethodGet, "/v1/patients/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// Evidence fetches the clinical evidence bundle. max > 0 lowers the
// per-category record cap for this call.
func (c *Client) Evidence(ctx context.Context, id string, max int) (Evidence, error) {
	path := "/v1/patients/" + url.PathEscape(id) + "/evidence"
	if max > 0 {
		path += "?max=" + strconv.Itoa(max)
	}
	var resp Evidence
	err := c.doJSON(ctx, http.MethodGet, path, nil, &resp)
	return resp, err
}

// GenerateHistory generates a clinical narrative for a patient.
func (c *Client) GenerateHistory(ctx context.Context, id string, req HistoryRequest) (History, error) {
	var resp History
	err := c.doJSON(ctx, http.MethodPost, "/v1/patients/"+url.PathEscape(id)+"/history", req, &resp)
	return resp, err
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reqBody *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("patdex: encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("patdex: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("patdex: %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		if derr := json.NewDecoder(resp.Body).Decode(apiErr); derr != nil {
			apiErr.Code = "unknown"
			apiErr.Message = resp.Status
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("patdex: decode response: %w", err)
	}
	return nil
}
