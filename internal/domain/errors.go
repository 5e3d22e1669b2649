package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrPatientNotFound signals that an identifier resolved to no patient.
	ErrPatientNotFound = errors.New("patient not found")
	// ErrInvalidFilter signals a search filter that failed local validation.
	ErrInvalidFilter = errors.New("invalid search filter")
	// ErrEmbeddingUnavailable signals an unreachable or malformed embedding provider.
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")
	// ErrVectorDimMismatch signals a query vector that does not match the index dimension.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrGenerationBackend signals a failed narrative generation call.
	ErrGenerationBackend = errors.New("generation backend error")
	// ErrUnknownModel signals a generation model outside the recognized set.
	ErrUnknownModel = errors.New("unknown generation model")
)

// Generation failure causes carried by GenerationError.
const (
	GenCauseTimeout   = "timeout"
	GenCauseRequest   = "request_failed"
	GenCauseMalformed = "malformed_response"
)

// GenerationError wraps ErrGenerationBackend with the failure cause,
// so callers can decide whether a retry is worth the cost.
type GenerationError struct {
	Cause string
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s (%s): %v", ErrGenerationBackend.Error(), e.Cause, e.Err)
}

// Unwrap exposes both the sentinel and the underlying error, so callers can
// match ErrGenerationBackend as well as causes like context.DeadlineExceeded.
func (e *GenerationError) Unwrap() []error { return []error{ErrGenerationBackend, e.Err} }

// NewGenerationError creates a generation backend error with a cause.
func NewGenerationError(cause string, err error) error {
	return &GenerationError{Cause: cause, Err: err}
}
