package narrative

import "context"

// Generator is the generation backend contract. stream may be nil; when set,
// produced chunks are forwarded as they arrive and the full text is still
// returned at the end.
type Generator interface {
	Generate(ctx context.Context, model, prompt string, stream func(chunk string) error) (string, error)
}
