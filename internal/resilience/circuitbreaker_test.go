package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var errTest = errors.New("test error")

func fail(context.Context) error    { return errTest }
func succeed(context.Context) error { return nil }

// fakeClock lets tests move a breaker past its reset timeout without sleeping.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestBreaker(cfg CircuitBreakerConfig) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	cb := NewCircuitBreaker(cfg)
	cb.now = clock.now
	return cb, clock
}

func TestNewCircuitBreaker_Defaults(t *testing.T) {
	t.Parallel()
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "test"})
	if cb.maxFailures != 5 {
		t.Errorf("maxFailures = %d, want 5", cb.maxFailures)
	}
	if cb.resetTimeout != 30*time.Second {
		t.Errorf("resetTimeout = %v, want 30s", cb.resetTimeout)
	}
	if cb.halfOpenMax != 3 {
		t.Errorf("halfOpenMax = %d, want 3", cb.halfOpenMax)
	}
	if cb.State() != StateClosed {
		t.Errorf("initial state = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_Transitions(t *testing.T) {
	t.Parallel()

	type step struct {
		advance time.Duration
		fn      func(context.Context) error
		wantErr error
		want    State
	}
	tests := []struct {
		name  string
		steps []step
	}{
		{
			name: "opens after max failures",
			steps: []step{
				{fn: fail, wantErr: errTest, want: StateClosed},
				{fn: fail, wantErr: errTest, want: StateOpen},
				{fn: succeed, wantErr: ErrCircuitOpen, want: StateOpen},
			},
		},
		{
			name: "success resets failure count",
			steps: []step{
				{fn: fail, wantErr: errTest, want: StateClosed},
				{fn: succeed, want: StateClosed},
				{fn: fail, wantErr: errTest, want: StateClosed},
			},
		},
		{
			name: "half-open after reset timeout",
			steps: []step{
				{fn: fail, wantErr: errTest},
				{fn: fail, wantErr: errTest, want: StateOpen},
				{advance: time.Minute, want: StateHalfOpen},
			},
		},
		{
			name: "probes close the breaker",
			steps: []step{
				{fn: fail, wantErr: errTest},
				{fn: fail, wantErr: errTest, want: StateOpen},
				{advance: time.Minute, fn: succeed, want: StateHalfOpen},
				{fn: succeed, want: StateClosed},
			},
		},
		{
			name: "failed probe re-opens",
			steps: []step{
				{fn: fail, wantErr: errTest},
				{fn: fail, wantErr: errTest, want: StateOpen},
				{advance: time.Minute, fn: fail, wantErr: errTest, want: StateOpen},
				{fn: succeed, wantErr: ErrCircuitOpen, want: StateOpen},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cb, clock := newTestBreaker(CircuitBreakerConfig{
				Name:         "primary",
				MaxFailures:  2,
				ResetTimeout: 30 * time.Second,
				HalfOpenMax:  2,
			})
			for i, s := range tt.steps {
				clock.advance(s.advance)
				if s.fn != nil {
					err := cb.Execute(context.Background(), s.fn)
					if s.wantErr == nil && err != nil {
						t.Fatalf("step %d: unexpected error: %v", i, err)
					}
					if s.wantErr != nil && !errors.Is(err, s.wantErr) {
						t.Fatalf("step %d: err = %v, want %v", i, err, s.wantErr)
					}
				}
				if got := cb.State(); got != s.want {
					t.Fatalf("step %d: state = %v, want %v", i, got, s.want)
				}
			}
		})
	}
}

func TestCircuitBreaker_OpenErrorNamesBreaker(t *testing.T) {
	t.Parallel()
	cb, _ := newTestBreaker(CircuitBreakerConfig{Name: "openai", MaxFailures: 1})
	_ = cb.Execute(context.Background(), fail)

	err := cb.Execute(context.Background(), succeed)
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
	if got, want := err.Error(), "openai: resilience: circuit breaker is open"; got != want {
		t.Errorf("err = %q, want %q", got, want)
	}
}

func TestCircuitBreaker_CancelledCallsDoNotTrip(t *testing.T) {
	t.Parallel()
	cb, _ := newTestBreaker(CircuitBreakerConfig{Name: "test", MaxFailures: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := cb.Execute(ctx, func(ctx context.Context) error { return ctx.Err() })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if cb.State() != StateClosed {
		t.Fatalf("state = %v, want closed after caller cancellation", cb.State())
	}
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	t.Parallel()

	var (
		mu   sync.Mutex
		seen []string
	)
	cb, clock := newTestBreaker(CircuitBreakerConfig{
		Name:         "primary",
		MaxFailures:  1,
		ResetTimeout: time.Second,
		HalfOpenMax:  1,
		OnStateChange: func(name string, from, to State) {
			mu.Lock()
			seen = append(seen, name+":"+from.String()+"->"+to.String())
			mu.Unlock()
		},
	})

	ctx := context.Background()
	_ = cb.Execute(ctx, fail)
	clock.advance(2 * time.Second)
	_ = cb.Execute(ctx, succeed)

	want := []string{
		"primary:closed->open",
		"primary:open->half-open",
		"primary:half-open->closed",
	}
	mu.Lock()
	defer mu.Unlock()
	if len(seen) != len(want) {
		t.Fatalf("transitions = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("transition[%d] = %q, want %q", i, seen[i], want[i])
		}
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	t.Parallel()
	cb, _ := newTestBreaker(CircuitBreakerConfig{Name: "test", MaxFailures: 2, ResetTimeout: time.Hour})

	_ = cb.Execute(context.Background(), fail)
	_ = cb.Execute(context.Background(), fail)
	if cb.State() != StateOpen {
		t.Fatal("expected open")
	}

	cb.Reset()
	if cb.State() != StateClosed {
		t.Fatalf("state = %v, want closed after reset", cb.State())
	}
	if err := cb.Execute(context.Background(), succeed); err != nil {
		t.Fatalf("unexpected error after reset: %v", err)
	}
}

func TestState_String(t *testing.T) {
	t.Parallel()
	tests := []struct {
		state State
		want  string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
