// Package chi implements the HTTP API on top of the chi router.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/carelane/patdex/internal/domain"
	domev "github.com/carelane/patdex/internal/domain/evidence"
	"github.com/carelane/patdex/internal/domain/search/filter"
	evidenceuc "github.com/carelane/patdex/internal/usecase/evidence"
	healthuc "github.com/carelane/patdex/internal/usecase/health"
	narrativeuc "github.com/carelane/patdex/internal/usecase/narrative"
	searchuc "github.com/carelane/patdex/internal/usecase/search"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server holds the HTTP handlers for the patient search API.
type Server struct {
	search        *searchuc.Service
	evidence      *evidenceuc.Service
	narrative     *narrativeuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	now           func() time.Time
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	search *searchuc.Service,
	evidence *evidenceuc.Service,
	narrative *narrativeuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		search:    search,
		evidence:  evidence,
		narrative: narrative,
		health:    health,
		logger:    logger,
		now:       time.Now,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidFilter, http.StatusBadRequest, codeInvalidFilter),
		sentinelHandler(domain.ErrUnknownModel, http.StatusBadRequest, codeUnknownModel),
		sentinelHandler(domain.ErrPatientNotFound, http.StatusNotFound, codePatientNotFound),
		sentinelHandler(domain.ErrEmbeddingUnavailable, http.StatusBadGateway, codeEmbeddingUnavailable),
		sentinelHandler(domain.ErrGenerationBackend, http.StatusBadGateway, codeGenerationFailed),
	}
	return s
}

// Routes mounts all API routes on the given router.
func (s *Server) Routes(r chi.Router) {
	r.Post("/v1/search", s.SearchPatients)
	r.Get("/v1/patients/{id}", s.GetPatient)
	r.Get("/v1/patients/{id}/evidence", s.GetEvidence)
	r.Post("/v1/patients/{id}/history", s.GenerateHistory)
	r.Get("/healthz", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// SearchPatients handles POST /v1/search.
func (s *Server) SearchPatients(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	f := filter.Filter{}
	if req.Filters != nil {
		f.Gender = req.Filters.Gender
		f.Deceased = req.Filters.Deceased
		f.MinAge = req.Filters.MinAge
		f.MaxAge = req.Filters.MaxAge
	}
	if req.Limit < 0 {
		writeError(w, http.StatusBadRequest, codeBadRequest, "limit must be non-negative")
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	matches, err := s.search.Search(ctx, req.Query, f, req.Limit)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, matchesToResponse(matches, req.Limit, s.now()))
}

// GetPatient handles GET /v1/patients/{id}.
func (s *Server) GetPatient(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	patient, err := s.evidence.Patient(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, patientToResponse(patient, s.now()))
}

// GetEvidence handles GET /v1/patients/{id}/evidence.
func (s *Server) GetEvidence(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	maxOverride := 0
	if raw := r.URL.Query().Get("max"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, codeBadRequest, "max must be a positive integer")
			return
		}
		maxOverride = n
	}

	bundle, err := s.evidence.Aggregate(r.Context(), id, maxOverride)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, bundleToResponse(bundle, s.now()))
}

// GenerateHistory handles POST /v1/patients/{id}/history.
func (s *Server) GenerateHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req historyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	bundle, err := s.evidence.Aggregate(r.Context(), id, 0)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	if req.Stream {
		s.streamHistory(w, r, bundle, req)
		return
	}

	text, err := s.narrative.Compose(r.Context(), bundle, req.Model, req.Prompt, nil)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	model := req.Model
	if model == "" {
		model = s.narrative.DefaultModel()
	}
	writeJSON(w, http.StatusOK, historyResponse{Narrative: text, Model: model})
}

// streamHistory writes generated chunks as they arrive. The status line is
// only committed once the first chunk exists, so a backend that fails before
// producing anything still maps to its error status; failures after that can
// only truncate the body.
func (s *Server) streamHistory(w http.ResponseWriter, r *http.Request, bundle *domev.Bundle, req historyRequest) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, codeInternalError, "streaming unsupported")
		return
	}

	started := false
	start := func() {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		started = true
	}

	text, err := s.narrative.Compose(r.Context(), bundle, req.Model, req.Prompt, func(chunk string) error {
		if !started {
			start()
		}
		if _, werr := w.Write([]byte(chunk)); werr != nil {
			return werr
		}
		flusher.Flush()
		return nil
	})
	if err != nil {
		if !started {
			s.handleDomainError(w, err)
			return
		}
		s.logger.Warn("streamed generation failed mid-response", zap.Error(err))
		return
	}

	// A backend that returned the text without streaming any chunks still
	// produces a complete response.
	if !started {
		start()
		_, _ = w.Write([]byte(text))
		flusher.Flush()
	}
}

// HealthCheck handles GET /healthz.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage != nil && usage.Used {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.TotalTokens))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidFilter,
		domain.ErrUnknownModel,
		domain.ErrPatientNotFound,
		domain.ErrVectorDimMismatch,
		domain.ErrEmbeddingUnavailable,
		domain.ErrGenerationBackend,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
