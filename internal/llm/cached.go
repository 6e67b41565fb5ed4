package llm

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/ppiankov/ttpmap/internal/cache"
)

// CachingProvider serves repeated identical prompts from a response cache.
// Cache failures never fail a completion.
type CachingProvider struct {
	next     Provider
	cache    cache.Cache
	ttl      time.Duration
	defaults Config
	validate func(text string) error
}

type CachingOption func(*CachingProvider)

// WithRequestDefaults keys requests that leave model, max tokens or
// temperature unset by cfg, the config the wrapped provider resolves them from
func WithRequestDefaults(cfg Config) CachingOption {
	return func(p *CachingProvider) {
		p.defaults = cfg
	}
}

// WithValidator stores only responses whose text passes validate
func WithValidator(validate func(text string) error) CachingOption {
	return func(p *CachingProvider) {
		p.validate = validate
	}
}

// NewCachingProvider wraps next with c. A zero ttl uses the cache default.
func NewCachingProvider(next Provider, c cache.Cache, ttl time.Duration, opts ...CachingOption) *CachingProvider {
	p := &CachingProvider{next: next, cache: c, ttl: ttl}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the wrapped provider name
func (p *CachingProvider) Name() string {
	return p.next.Name()
}

// IsAvailable delegates to the wrapped provider
func (p *CachingProvider) IsAvailable(ctx context.Context) bool {
	return p.next.IsAvailable(ctx)
}

// Complete returns a cached response when one exists for the same request
func (p *CachingProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	key := requestKey(p.next.Name(), p.withDefaults(req))

	if data, ok := p.cache.Get(key); ok {
		var resp CompletionResponse
		if err := json.Unmarshal(data, &resp); err == nil && p.valid(resp.Text) {
			resp.Cached = true
			return &resp, nil
		}
		_ = p.cache.Delete(key)
	}

	resp, err := p.next.Complete(ctx, req)
	if err != nil {
		return nil, err
	}

	if !p.valid(resp.Text) {
		return resp, nil
	}
	if data, err := json.Marshal(resp); err == nil {
		_ = p.cache.Set(key, data, p.ttl)
	}
	return resp, nil
}

func (p *CachingProvider) valid(text string) bool {
	return p.validate == nil || p.validate(text) == nil
}

func (p *CachingProvider) withDefaults(req CompletionRequest) CompletionRequest {
	m, tokens, temp := p.defaults.resolve(req, "")
	req.Model, req.MaxTokens, req.Temperature = m, tokens, &temp
	return req
}

func requestKey(provider string, req CompletionRequest) string {
	return cache.Key(
		"llm",
		provider,
		req.Model,
		strconv.Itoa(req.MaxTokens),
		strconv.FormatFloat(*req.Temperature, 'f', -1, 64),
		strconv.FormatBool(req.JSON),
		req.System,
		req.Prompt,
	)
}
