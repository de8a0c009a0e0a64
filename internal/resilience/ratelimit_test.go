package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/speechcoach/pkg/provider/llm"
	"github.com/MrWong99/speechcoach/pkg/provider/llm/mock"
)

func TestRateLimitedLLM_BurstThenWait(t *testing.T) {
	t.Parallel()
	inner := &mock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "{}"}}
	// One request per minute: the burst passes, the next call must wait.
	rl := NewRateLimitedLLM(inner, 1, 2)

	for i := range 2 {
		if _, err := rl.Complete(context.Background(), llm.CompletionRequest{}); err != nil {
			t.Fatalf("call %d within burst: %v", i, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := rl.Complete(ctx, llm.CompletionRequest{})
	if err == nil {
		t.Fatal("expected the third call to exceed the quota")
	}
	if n := inner.CallCount(); n != 2 {
		t.Errorf("inner calls = %d, want 2", n)
	}
}

func TestRateLimitedLLM_CancelledWaitDoesNotTripBreaker(t *testing.T) {
	t.Parallel()
	rl := NewRateLimitedLLM(&mock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "{}"}}, 1, 1)
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "limited", MaxFailures: 1})

	if _, err := rl.Complete(context.Background(), llm.CompletionRequest{}); err != nil {
		t.Fatalf("first call: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := cb.Execute(ctx, func(ctx context.Context) error {
		_, err := rl.Complete(ctx, llm.CompletionRequest{})
		return err
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("breaker state = %v, want closed", cb.State())
	}
}
