// Package resilience protects completion-service calls with circuit breakers
// and ordered provider failover.
//
// [CircuitBreaker] is a three-state breaker (closed, open, half-open).
// [FallbackGroup] pairs each provider with its own breaker and tries them in
// registration order. [LLMFallback] applies that to [llm.Provider] so the
// evaluator sees one provider regardless of how many backends are configured.
//
// Errors returned by the wrapped providers keep their identity: callers can
// still match them with [errors.Is] and [errors.As] after failover.
//
// All types are safe for concurrent use.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MrWong99/speechcoach/internal/observe"
)

// ErrCircuitOpen is returned by [CircuitBreaker.Execute] when the breaker
// rejects a call without running it.
var ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

// State represents the current operating mode of a [CircuitBreaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects calls with [ErrCircuitOpen] until the reset timeout
	// elapses.
	StateOpen

	// StateHalfOpen lets a limited number of probe calls through. Enough
	// successes close the breaker; any failure re-opens it.
	StateHalfOpen
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig holds tuning knobs for a [CircuitBreaker].
type CircuitBreakerConfig struct {
	// Name labels the breaker in logs and in [ErrCircuitOpen] wrapping.
	Name string

	// MaxFailures is the number of consecutive failures in the closed state
	// before the breaker opens. Default: 5.
	MaxFailures int

	// ResetTimeout is how long the breaker stays open before probing.
	// Default: 30s.
	ResetTimeout time.Duration

	// HalfOpenMax is the number of successful probes needed to close the
	// breaker again. Default: 3.
	HalfOpenMax int

	// OnStateChange, if set, is called after every transition. It runs with
	// the breaker's lock released.
	OnStateChange func(name string, from, to State)
}

// CircuitBreaker implements the three-state circuit breaker pattern.
type CircuitBreaker struct {
	name          string
	maxFailures   int
	resetTimeout  time.Duration
	halfOpenMax   int
	onStateChange func(name string, from, to State)
	now           func() time.Time

	mu              sync.Mutex
	state           State
	consecutiveFail int
	openedAt        time.Time
	probes          int
	probeSuccesses  int
}

// NewCircuitBreaker creates a [CircuitBreaker]. Zero-value config fields are
// replaced with defaults.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 3
	}
	return &CircuitBreaker{
		name:          cfg.Name,
		maxFailures:   cfg.MaxFailures,
		resetTimeout:  cfg.ResetTimeout,
		halfOpenMax:   cfg.HalfOpenMax,
		onStateChange: cfg.OnStateChange,
		now:           time.Now,
		state:         StateClosed,
	}
}

// Name returns the breaker's configured label.
func (cb *CircuitBreaker) Name() string { return cb.name }

// Execute runs fn if the breaker admits the call. A rejected call returns an
// error wrapping [ErrCircuitOpen] without invoking fn.
//
// A failure caused by ctx being cancelled or expiring is returned to the
// caller but does not count against the breaker: the provider did nothing
// wrong when the caller gave up.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	probe, err := cb.admit(ctx)
	if err != nil {
		return err
	}

	err = fn(ctx)

	switch {
	case err == nil:
		cb.onSuccess(ctx, probe)
	case ctx.Err() != nil:
		cb.release(probe)
	default:
		cb.onFailure(ctx, probe)
	}
	return err
}

func (cb *CircuitBreaker) admit(ctx context.Context) (probe bool, err error) {
	cb.mu.Lock()
	var from State
	transitioned := false
	if cb.state == StateOpen {
		if cb.now().Sub(cb.openedAt) < cb.resetTimeout {
			cb.mu.Unlock()
			return false, fmt.Errorf("%s: %w", cb.name, ErrCircuitOpen)
		}
		from, transitioned = cb.state, true
		cb.state = StateHalfOpen
		cb.probes = 0
		cb.probeSuccesses = 0
	}
	if cb.state == StateHalfOpen {
		if cb.probes >= cb.halfOpenMax {
			cb.mu.Unlock()
			return false, fmt.Errorf("%s: %w", cb.name, ErrCircuitOpen)
		}
		cb.probes++
		probe = true
	}
	cb.mu.Unlock()

	if transitioned {
		cb.notify(ctx, from, StateHalfOpen)
	}
	return probe, nil
}

func (cb *CircuitBreaker) onSuccess(ctx context.Context, probe bool) {
	cb.mu.Lock()
	if !probe || cb.state != StateHalfOpen {
		cb.consecutiveFail = 0
		cb.mu.Unlock()
		return
	}
	cb.probeSuccesses++
	if cb.probeSuccesses < cb.halfOpenMax {
		cb.mu.Unlock()
		return
	}
	cb.state = StateClosed
	cb.consecutiveFail = 0
	cb.probes = 0
	cb.probeSuccesses = 0
	cb.mu.Unlock()

	cb.notify(ctx, StateHalfOpen, StateClosed)
}

func (cb *CircuitBreaker) onFailure(ctx context.Context, probe bool) {
	cb.mu.Lock()
	from := cb.state
	switch {
	case probe && cb.state == StateHalfOpen:
		cb.state = StateOpen
		cb.openedAt = cb.now()
	case cb.state == StateClosed:
		cb.consecutiveFail++
		if cb.consecutiveFail < cb.maxFailures {
			cb.mu.Unlock()
			return
		}
		cb.state = StateOpen
		cb.openedAt = cb.now()
	default:
		cb.mu.Unlock()
		return
	}
	failures := cb.consecutiveFail
	cb.mu.Unlock()

	observe.Logger(ctx).Warn("circuit breaker opened",
		"name", cb.name, "from", from.String(), "consecutive_failures", failures)
	cb.notify(ctx, from, StateOpen)
}

// release returns an unused probe slot.
func (cb *CircuitBreaker) release(probe bool) {
	if !probe {
		return
	}
	cb.mu.Lock()
	if cb.state == StateHalfOpen && cb.probes > 0 {
		cb.probes--
	}
	cb.mu.Unlock()
}

func (cb *CircuitBreaker) notify(ctx context.Context, from, to State) {
	observe.Logger(ctx).Info("circuit breaker state change",
		"name", cb.name, "from", from.String(), "to", to.String())
	if cb.onStateChange != nil {
		cb.onStateChange(cb.name, from, to)
	}
}

// State returns the current [State]. An open breaker whose reset timeout has
// elapsed reports [StateHalfOpen]; the transition itself happens on the next
// [CircuitBreaker.Execute].
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.resetTimeout {
		return StateHalfOpen
	}
	return cb.state
}

// Reset forces the breaker back to [StateClosed] and clears all counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	from := cb.state
	cb.state = StateClosed
	cb.consecutiveFail = 0
	cb.probes = 0
	cb.probeSuccesses = 0
	cb.mu.Unlock()

	if from != StateClosed {
		cb.notify(context.Background(), from, StateClosed)
	}
}
