// Package ollama drives the narrative generation backend over an
// OpenAI-compatible chat completion API, as served by Ollama and friends.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/carelane/patdex/internal/domain"
	"github.com/carelane/patdex/internal/metrics"
)

// Generator submits prompts to the chat completion endpoint.
type Generator struct {
	llm     llms.Model
	timeout time.Duration
	logger  *zap.Logger
}

// Config holds the generation backend settings.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewGenerator creates a generation backend client. The backend needs no real
// credentials when it is a local Ollama server, but the client library
// requires a non-empty token.
func NewGenerator(cfg *Config) (*Generator, error) {
	token := cfg.APIKey
	if token == "" {
		token = "none"
	}

	opts := []openai.Option{openai.WithToken(token)}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create generation client: %w", err)
	}

	return &Generator{
		llm:     llm,
		timeout: cfg.Timeout,
		logger:  cfg.Logger,
	}, nil
}

// Generate implements narrative.Generator: one prompt in, the produced text
// out, with chunks forwarded to stream as they arrive when stream is non-nil.
func (g *Generator) Generate(ctx context.Context, model, prompt string, stream func(chunk string) error) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	opts := []llms.CallOption{llms.WithModel(model)}
	if stream != nil {
		opts = append(opts, llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			return stream(string(chunk))
		}))
	}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	start := time.Now()

	resp, err := g.llm.GenerateContent(ctx, messages, opts...)

	duration := time.Since(start)

	if err != nil {
		cause := domain.GenCauseRequest
		if errors.Is(err, context.DeadlineExceeded) {
			cause = domain.GenCauseTimeout
		}
		metrics.GenerationRequestsTotal.WithLabelValues(model, "error").Inc()
		metrics.GenerationErrorsTotal.WithLabelValues(model, cause).Inc()
		g.logger.Warn("generation request failed",
			zap.String("model", model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return "", domain.NewGenerationError(cause, err)
	}

	if len(resp.Choices) == 0 {
		metrics.GenerationRequestsTotal.WithLabelValues(model, "error").Inc()
		metrics.GenerationErrorsTotal.WithLabelValues(model, domain.GenCauseMalformed).Inc()
		return "", domain.NewGenerationError(domain.GenCauseMalformed, errors.New("empty completion response"))
	}

	metrics.GenerationRequestsTotal.WithLabelValues(model, "success").Inc()
	metrics.GenerationRequestDuration.WithLabelValues(model).Observe(duration.Seconds())

	return resp.Choices[0].Content, nil
}
