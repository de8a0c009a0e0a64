package resilience

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/MrWong99/speechcoach/pkg/provider/llm"
)

var _ llm.Provider = (*RateLimitedLLM)(nil)

// RateLimitedLLM holds completion calls to a per-backend request quota.
// Calls wait for a token; a cancelled wait returns the context error, which
// circuit breakers do not count as a backend failure.
type RateLimitedLLM struct {
	inner   llm.Provider
	limiter *rate.Limiter
}

// NewRateLimitedLLM allows requestsPerMinute calls to inner, with bursts of
// up to burst calls. burst below 1 is treated as 1.
func NewRateLimitedLLM(inner llm.Provider, requestsPerMinute, burst int) *RateLimitedLLM {
	return &RateLimitedLLM{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), max(burst, 1)),
	}
}

// Complete waits for a token and forwards req.
func (r *RateLimitedLLM) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("resilience: rate limit: %w", err)
	}
	return r.inner.Complete(ctx, req)
}
