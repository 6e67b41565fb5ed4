package llm

import (
	"context"
	"fmt"
)

// Waiter blocks until a call keyed by key may proceed
type Waiter interface {
	Wait(ctx context.Context, key string) error
}

// RateLimitedProvider throttles calls through a shared limiter keyed by
// provider name, so concurrent sessions share one allowance per backend.
type RateLimitedProvider struct {
	next    Provider
	limiter Waiter
}

// NewRateLimitedProvider wraps next with limiter
func NewRateLimitedProvider(next Provider, limiter Waiter) *RateLimitedProvider {
	return &RateLimitedProvider{next: next, limiter: limiter}
}

// Name returns the wrapped provider name
func (p *RateLimitedProvider) Name() string {
	return p.next.Name()
}

// IsAvailable delegates without consuming a token
func (p *RateLimitedProvider) IsAvailable(ctx context.Context) bool {
	return p.next.IsAvailable(ctx)
}

// Complete waits for clearance, then delegates
func (p *RateLimitedProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if err := p.limiter.Wait(ctx, p.next.Name()); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	return p.next.Complete(ctx, req)
}
