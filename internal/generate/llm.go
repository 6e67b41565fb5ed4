package generate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/ppiankov/ttpmap/internal/llm"
	"github.com/ppiankov/ttpmap/internal/metrics"
	"github.com/ppiankov/ttpmap/internal/model"
)

// LLMGenerator builds the mapping prompt, sends it to an llm.Provider and
// parses the JSON answer into a Draft.
type LLMGenerator struct {
	provider llm.Provider
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*LLMGenerator)

// WithLogger sets the generator logger
func WithLogger(logger *slog.Logger) Option {
	return func(g *LLMGenerator) {
		g.logger = logger
	}
}

// WithMetrics records backend calls and token usage
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *LLMGenerator) {
		g.metrics = m
	}
}

// NewLLMGenerator creates a generator backed by provider
func NewLLMGenerator(provider llm.Provider, opts ...Option) *LLMGenerator {
	g := &LLMGenerator{
		provider: provider,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate runs one attempt. Every failure wraps model.ErrGeneration.
func (g *LLMGenerator) Generate(ctx context.Context, req Request) (*model.Draft, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrGeneration, err)
	}

	name := g.provider.Name()
	g.logger.Debug("requesting draft", "provider", name, "attempt", req.Attempt, "focus", req.Focus)

	resp, err := g.provider.Complete(ctx, llm.CompletionRequest{
		System: SystemPrompt(),
		Prompt: BuildPrompt(req),
		JSON:   true,
	})
	if err != nil {
		g.metrics.ObserveGeneratorCall(name, "error", 0)
		return nil, fmt.Errorf("%w: %s: %w", model.ErrGeneration, name, err)
	}

	result, tokens := "ok", resp.TokensUsed
	if resp.Cached {
		result, tokens = "cached", 0
	}

	draft, err := ParseDraft(resp.Text, req.Focus)
	if err != nil {
		g.metrics.ObserveGeneratorCall(name, "malformed", tokens)
		var mde *model.MalformedDraftError
		if errors.As(err, &mde) {
			g.logger.Warn("generator returned malformed draft", "provider", name, "attempt", req.Attempt, "raw", mde.Excerpt)
		}
		return nil, err
	}

	g.metrics.ObserveGeneratorCall(name, result, tokens)
	g.logger.Debug("draft received",
		"provider", name,
		"model", resp.Model,
		"attempt", req.Attempt,
		"mappings", len(draft.Mappings),
		"tokens", resp.TokensUsed,
		"cached", resp.Cached,
	)
	return draft, nil
}
