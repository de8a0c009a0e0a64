package resilience

import (
	"context"
	"fmt"
	"strings"

	"github.com/MrWong99/speechcoach/internal/observe"
	"github.com/MrWong99/speechcoach/pkg/provider/llm"
)

// Compile-time check that LLMFallback satisfies llm.Provider.
var _ llm.Provider = (*LLMFallback)(nil)

// LLMFallback is an [llm.Provider] that fails over across several completion
// backends.
type LLMFallback struct {
	group *FallbackGroup[llm.Provider]
}

// NewLLMFallback creates an [LLMFallback] with primary as the first backend.
func NewLLMFallback(primary llm.Provider, name string, cfg FallbackConfig) *LLMFallback {
	return &LLMFallback{
		group: NewFallbackGroup[llm.Provider](primary, name, cfg),
	}
}

// AddFallback registers a backend tried after every earlier one.
func (f *LLMFallback) AddFallback(name string, p llm.Provider) {
	f.group.AddFallback(name, p)
}

// Complete sends req to the first backend that admits and answers it.
func (f *LLMFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	resp, served, err := ExecuteWithResult(ctx, f.group, func(ctx context.Context, p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	observe.Logger(ctx).Debug("completion served", "provider", served)
	return resp, nil
}

// Status returns the breaker state of every backend in try order.
func (f *LLMFallback) Status() []EntryStatus { return f.group.Status() }

// Check returns an error when every backend's circuit is open. It matches
// the signature expected by readiness probes.
func (f *LLMFallback) Check(context.Context) error {
	if f.group.Available() {
		return nil
	}
	names := make([]string, 0, f.group.Len())
	for _, s := range f.group.Status() {
		names = append(names, s.Name)
	}
	return fmt.Errorf("resilience: circuits open for %s: %w", strings.Join(names, ", "), ErrCircuitOpen)
}
