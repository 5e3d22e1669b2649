// Package narrative implements the clinical summary composer: it turns an
// evidence bundle into a bounded prompt and drives the generation backend.
package narrative

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/carelane/patdex/internal/domain"
	domev "github.com/carelane/patdex/internal/domain/evidence"
	"github.com/carelane/patdex/internal/logger"
)

// DefaultInstruction is the instruction template prepended to the serialized
// patient data when the caller supplies no custom prompt.
const DefaultInstruction = "You are a clinical assistant. Using only the patient data below, " +
	"write a concise clinical history summary. Highlight active conditions, " +
	"recent significant observations, allergies, and ongoing care plans. " +
	"Do not invent information that is not present in the data."

// Service composes narrative prompts and delegates text production to the
// generation backend.
type Service struct {
	gen          Generator
	models       []string
	defaultModel string
	budgetChars  int
	instruction  string
	now          func() time.Time
}

// New creates a narrative service with the default instruction template.
// models is the recognized model set and must contain defaultModel;
// budgetChars bounds the serialized patient data.
func New(gen Generator, models []string, defaultModel string, budgetChars int) *Service {
	return NewWithInstruction(gen, models, defaultModel, budgetChars, DefaultInstruction)
}

// NewWithInstruction creates a narrative service with a custom instruction template.
func NewWithInstruction(gen Generator, models []string, defaultModel string, budgetChars int, instruction string) *Service {
	return &Service{
		gen:          gen,
		models:       models,
		defaultModel: defaultModel,
		budgetChars:  budgetChars,
		instruction:  instruction,
		now:          time.Now,
	}
}

// WithClock overrides the wall clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Models returns the recognized model identifiers.
func (s *Service) Models() []string { return s.models }

// DefaultModel returns the model used when a request names none.
func (s *Service) DefaultModel() string { return s.defaultModel }

// Compose serializes the bundle under the prompt budget, submits it to the
// generation backend, and returns the produced text verbatim. An empty model
// selects the default; an unrecognized one fails with ErrUnknownModel before
// any backend call. stream may be nil.
func (s *Service) Compose(ctx context.Context, bundle *domev.Bundle, model, customPrompt string, stream func(chunk string) error) (string, error) {
	model, err := s.resolveModel(model)
	if err != nil {
		return "", err
	}

	serialized := serializeBundle(bundle, s.budgetChars, s.now())
	prompt := buildPrompt(s.instruction, customPrompt, serialized)

	logger.FromContext(ctx).Debug("composing narrative",
		zap.String("patient_id", bundle.PatientID),
		zap.String("model", model),
		zap.Int("records", bundle.TotalRecords()),
		zap.Int("prompt_chars", len(prompt)),
	)

	text, err := s.gen.Generate(ctx, model, prompt, stream)
	if err != nil {
		if errors.Is(err, domain.ErrGenerationBackend) {
			return "", err
		}
		return "", domain.NewGenerationError(domain.GenCauseRequest, err)
	}
	return text, nil
}

func (s *Service) resolveModel(model string) (string, error) {
	if model == "" {
		return s.defaultModel, nil
	}
	for _, m := range s.models {
		if m == model {
			return model, nil
		}
	}
	return "", fmt.Errorf("%w: %q", domain.ErrUnknownModel, model)
}

func buildPrompt(instruction, customPrompt, serialized string) string {
	if strings.TrimSpace(customPrompt) != "" {
		instruction = customPrompt
	}
	return instruction + "\n\n" + serialized
}
