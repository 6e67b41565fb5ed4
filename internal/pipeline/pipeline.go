package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/ppiankov/ttpmap/internal/cache"
	"github.com/ppiankov/ttpmap/internal/corpus"
	"github.com/ppiankov/ttpmap/internal/generate"
	"github.com/ppiankov/ttpmap/internal/llm"
	"github.com/ppiankov/ttpmap/internal/metrics"
	"github.com/ppiankov/ttpmap/internal/model"
	"github.com/ppiankov/ttpmap/internal/session"
	"github.com/ppiankov/ttpmap/internal/verify"
	"github.com/ppiankov/ttpmap/internal/worker"
)

// Pipeline wires configuration into a ready-to-run mapping session
type Pipeline struct {
	config   *model.Config
	corpus   *corpus.Corpus
	provider llm.Provider
	runner   *session.Runner
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Pipeline)

// WithLogger sets the logger passed to every component
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithMetrics records generator calls and session outcomes
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// WithProvider uses provider instead of the one named in the config.
// It is still wrapped by the rate limiter and, if enabled, the cache.
func WithProvider(provider llm.Provider) Option {
	return func(p *Pipeline) {
		p.provider = provider
	}
}

// WithCorpus skips loading the corpus from disk
func WithCorpus(c *corpus.Corpus) Option {
	return func(p *Pipeline) {
		p.corpus = c
	}
}

// NewPipeline creates a new pipeline with the given configuration
func NewPipeline(cfg *model.Config, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		config: cfg,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}

	if cfg.Session.MaxAttempts < 1 {
		return nil, fmt.Errorf("%w: session.max_attempts must be at least 1, got %d",
			model.ErrConfiguration, cfg.Session.MaxAttempts)
	}
	if cfg.Session.Threshold <= 0 || cfg.Session.Threshold > 1 {
		return nil, fmt.Errorf("%w: session.threshold must be in (0, 1], got %.2f",
			model.ErrConfiguration, cfg.Session.Threshold)
	}

	if p.corpus == nil {
		c, err := corpus.Load(cfg.Corpus.Dir, corpus.WithLogger(p.logger))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", model.ErrConfiguration, err)
		}
		p.corpus = c
	}
	if p.corpus.Len() == 0 {
		return nil, fmt.Errorf("%w: corpus at %s is empty (run `ttpmap corpus fetch` or `ttpmap corpus import`)",
			model.ErrConfiguration, cfg.Corpus.Dir)
	}

	if p.provider == nil {
		provider, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM, cfg.HTTP))
		if err != nil {
			return nil, err
		}
		p.provider = provider
	}

	generator := generate.NewLLMGenerator(
		p.wrapProvider(p.provider),
		generate.WithLogger(p.logger),
		generate.WithMetrics(p.metrics),
	)
	engine := verify.New(p.corpus, verify.WithThreshold(cfg.Session.Threshold))

	runnerOpts := []session.Option{
		session.WithMaxAttempts(cfg.Session.MaxAttempts),
		session.WithLogger(p.logger),
		session.WithMetrics(p.metrics),
	}
	if cfg.Session.Suggestions {
		runnerOpts = append(runnerOpts, session.WithSuggester(p.corpus))
	}
	p.runner = session.New(generator, engine, runnerOpts...)

	return p, nil
}

// wrapProvider applies the shared rate limiter and the optional response cache
func (p *Pipeline) wrapProvider(base llm.Provider) llm.Provider {
	rl := p.config.RateLimiting
	limiter := worker.NewLimiter(rl.RequestsPerSecond, rl.BurstSize)
	if rps, ok := rl.Providers[strings.ToLower(base.Name())]; ok {
		limiter.SetRate(base.Name(), rps, rl.BurstSize)
		p.logger.Debug("provider rate override", "provider", base.Name(), "requests_per_second", rps)
	}
	var provider llm.Provider = llm.NewRateLimitedProvider(base, limiter)

	if p.config.Cache.Enabled {
		c := cache.NewLayeredCache(
			time.Duration(p.config.Cache.MemoryTTLMinutes)*time.Minute,
			p.config.Cache.Dir,
			time.Duration(p.config.Cache.DiskTTLHours)*time.Hour,
		)
		provider = llm.NewCachingProvider(provider, c, 0,
			llm.WithRequestDefaults(llm.ConfigFromModel(p.config.LLM, p.config.HTTP)),
			llm.WithValidator(generate.ValidateDraft),
		)
		p.logger.Debug("llm response cache enabled", "dir", p.config.Cache.Dir)
	}
	return provider
}

// Map runs one mapping session for input
func (p *Pipeline) Map(ctx context.Context, input string, focus model.Focus) (*model.Report, error) {
	report, err := p.runner.Run(ctx, input, focus)
	if err != nil {
		return nil, err
	}
	report.Provider = p.provider.Name()
	report.Model = p.config.LLM.Model
	return report, nil
}

// Corpus returns the loaded corpus
func (p *Pipeline) Corpus() *corpus.Corpus {
	return p.corpus
}

// ProviderName returns the name of the configured generator backend
func (p *Pipeline) ProviderName() string {
	return p.provider.Name()
}
