// Package app wires the speechcoach subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Evaluate runs one evaluation request end to end, Apply takes
// hot-reloaded settings and Shutdown tears everything down in order.
//
// For testing, inject doubles via functional options (WithMetrics,
// WithSessionCache). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/MrWong99/speechcoach/internal/config"
	"github.com/MrWong99/speechcoach/internal/evaluator"
	"github.com/MrWong99/speechcoach/internal/evidence"
	"github.com/MrWong99/speechcoach/internal/health"
	"github.com/MrWong99/speechcoach/internal/observe"
	"github.com/MrWong99/speechcoach/internal/redact"
	"github.com/MrWong99/speechcoach/internal/telemetry"
	"github.com/MrWong99/speechcoach/internal/telemetry/pgstore"
	"github.com/MrWong99/speechcoach/pkg/provider/embeddings"
	"github.com/MrWong99/speechcoach/pkg/provider/llm"
	"github.com/MrWong99/speechcoach/pkg/types"
)

// ErrInvalidRequest is returned by [App.Evaluate] for requests that cannot
// be evaluated at all.
var ErrInvalidRequest = errors.New("app: invalid request")

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by main.go via the config registry.
type Providers struct {
	// LLM is required. main.go passes a *resilience.LLMFallback.
	LLM llm.Provider

	// Embeddings backs consistency telemetry. Optional.
	Embeddings embeddings.Provider
}

// Request is one evaluation request as read from a request file or an HTTP
// body.
type Request struct {
	SessionID          string                    `json:"sessionId,omitempty" validate:"omitempty,max=128,printascii"`
	Transcript         []types.TranscriptSegment `json:"transcript" validate:"required,min=1"`
	Metrics            types.DeliveryMetrics     `json:"metrics"`
	Config             *types.EvaluationConfig   `json:"config,omitempty"`
	VisualObservations *types.VisualObservations `json:"visualObservations,omitempty"`
	Consent            *types.ConsentRecord      `json:"consent,omitempty"`
}

// newValidator returns the request validator. A confirmed consent must name
// the speaker so the redactor can keep the speaker's own name.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		c := sl.Current().Interface().(types.ConsentRecord)
		if c.ConsentConfirmed && c.SpeakerName == "" {
			sl.ReportError(c.SpeakerName, "SpeakerName", "speakerName", "required_with_consent", "")
		}
	}, types.ConsentRecord{})
	return v
}

// Result is the outcome of [App.Evaluate]. The redacted fields are set only
// when the request carries confirmed consent.
type Result struct {
	SessionID        string                            `json:"sessionId,omitempty"`
	Evaluation       *types.StructuredEvaluation       `json:"evaluation"`
	PassRate         float64                           `json:"passRate"`
	Script           string                            `json:"script"`
	ScriptRedacted   string                            `json:"scriptRedacted,omitempty"`
	EvaluationPublic *types.StructuredEvaluationPublic `json:"evaluationPublic,omitempty"`
}

// settings are the hot-reloadable parts of the config.
type settings struct {
	temperature float64
	maxTokens   int
	redactor    *redact.Redactor
}

// App owns all subsystem lifetimes and runs evaluation requests.
type App struct {
	cfg       *config.Config
	providers *Providers
	metrics   *observe.Metrics

	mu  sync.RWMutex
	set settings

	// Subsystems, initialised in New and torn down in Shutdown.
	validate *validator.Validate
	store    *pgstore.Store
	newCache func(sessionID string) telemetry.VectorCache
	sessions *SessionManager
	cancel   context.CancelFunc

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithMetrics sets the metric instruments. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithSessionCache injects the per-session vector cache factory instead of
// connecting to PostgreSQL.
func WithSessionCache(f func(sessionID string) telemetry.VectorCache) Option {
	return func(a *App) { a.newCache = f }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry).
//
// New connects the telemetry store synchronously when telemetry is enabled
// with a DSN and starts the idle-session evictor.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.LLM == nil {
		return nil, errors.New("app: an llm provider is required")
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	a.set = newSettings(cfg)
	a.validate = newValidator()

	// ── 1. Telemetry store ───────────────────────────────────────────────
	if err := a.initTelemetry(ctx); err != nil {
		return nil, fmt.Errorf("app: init telemetry: %w", err)
	}

	// ── 2. Session trackers ──────────────────────────────────────────────
	a.sessions = NewSessionManager(SessionManagerConfig{
		Embedder:     providers.Embeddings,
		NewCache:     a.newCache,
		Metrics:      a.metrics,
		ProviderName: cfg.Providers.Embeddings.Name,
	})
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.cancel = cancel
	go a.sessions.Run(runCtx)

	slog.Info("app initialised",
		"llm", cfg.Providers.LLM.Name,
		"fallbacks", len(cfg.Providers.LLMFallbacks),
		"telemetry", cfg.Telemetry.Enabled,
		"persistent_telemetry", a.store != nil,
	)
	return a, nil
}

func newSettings(cfg *config.Config) settings {
	return settings{
		temperature: cfg.Generation.EffectiveTemperature(),
		maxTokens:   cfg.Generation.EffectiveMaxTokens(),
		redactor: redact.New(
			redact.WithPhoneticSpeakerMatch(cfg.Redaction.PhoneticSpeakerMatch),
			redact.WithExtraNonNames(cfg.Redaction.ExtraNonNames...),
		),
	}
}

// initTelemetry connects the pgvector store or keeps the injected cache.
func (a *App) initTelemetry(ctx context.Context) error {
	tc := a.cfg.Telemetry
	if a.newCache != nil || !tc.Enabled || tc.PostgresDSN == "" {
		return nil
	}

	store, err := pgstore.New(ctx, tc.PostgresDSN, tc.Dimensions())
	if err != nil {
		return err
	}
	a.store = store
	a.newCache = func(sessionID string) telemetry.VectorCache { return store.Session(sessionID) }
	a.closers = append(a.closers, func() error {
		store.Close()
		return nil
	})
	return nil
}

// ─── Requests ────────────────────────────────────────────────────────────────

// engine builds an evaluator for one request with the current settings.
func (a *App) engine(sessionID string) *evaluator.Engine {
	a.mu.RLock()
	set := a.set
	a.mu.RUnlock()

	opts := []evaluator.Option{
		evaluator.WithMetrics(a.metrics),
		evaluator.WithProviderName(a.cfg.Providers.LLM.Name),
		evaluator.WithTemperature(set.temperature),
		evaluator.WithMaxTokens(set.maxTokens),
		evaluator.WithRedactor(set.redactor),
	}
	if a.cfg.Telemetry.Enabled {
		opts = append(opts, evaluator.WithConsistency(a.sessions.Consistency(sessionID)))
	}
	return evaluator.New(a.providers.LLM, opts...)
}

// Evaluate generates, renders and (with confirmed consent) redacts one
// evaluation. Consistency telemetry runs afterwards when enabled. Generation
// errors are returned unchanged apart from a prefix.
func (a *App) Evaluate(ctx context.Context, req Request) (*Result, error) {
	if err := a.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	ctx = observe.WithSessionID(ctx, req.SessionID)
	log := observe.Logger(ctx)
	start := time.Now()

	eng := a.engine(req.SessionID)
	gen, err := eng.Generate(ctx, req.Transcript, req.Metrics, req.Config, req.VisualObservations)
	if err != nil {
		return nil, fmt.Errorf("app: generate: %w", err)
	}

	var speaker string
	if req.Consent != nil {
		speaker = req.Consent.SpeakerName
	}
	res := &Result{
		SessionID:  req.SessionID,
		Evaluation: gen.Evaluation,
		PassRate:   gen.PassRate,
		Script:     eng.RenderScript(gen.Evaluation, speaker, &req.Metrics, req.VisualObservations),
	}

	if req.Consent != nil && req.Consent.ConsentConfirmed {
		out := eng.Redact(types.RedactionInput{
			Script:     res.Script,
			Evaluation: gen.Evaluation,
			Consent:    *req.Consent,
		})
		res.ScriptRedacted = out.ScriptRedacted
		res.EvaluationPublic = out.EvaluationPublic
	}

	if a.cfg.Telemetry.Enabled {
		eng.LogConsistencyTelemetry(ctx, gen.Evaluation)
	}

	log.Info("evaluation complete",
		"pass_rate", res.PassRate,
		"items", len(res.Evaluation.Items),
		"redacted", res.EvaluationPublic != nil,
		"duration", time.Since(start),
	)
	return res, nil
}

// Validate checks every item of eval against transcript.
func (a *App) Validate(eval *types.StructuredEvaluation, transcript []types.TranscriptSegment) evidence.Result {
	return evidence.Validate(eval, transcript)
}

// Sessions returns the tracked speaker sessions.
func (a *App) Sessions() []SessionInfo {
	return a.sessions.Sessions()
}

// ─── Hot reload ──────────────────────────────────────────────────────────────

// Apply takes the hot-reloadable parts of cfg. Requests already running
// keep the settings they started with.
func (a *App) Apply(cfg *config.Config, diff config.ConfigDiff) {
	if !diff.GenerationChanged && !diff.RedactionChanged {
		return
	}
	next := newSettings(cfg)

	a.mu.Lock()
	if !diff.GenerationChanged {
		next.temperature, next.maxTokens = a.set.temperature, a.set.maxTokens
	}
	if !diff.RedactionChanged {
		next.redactor = a.set.redactor
	}
	a.set = next
	a.mu.Unlock()

	slog.Info("settings applied",
		"temperature", next.temperature,
		"max_tokens", next.maxTokens,
		"redaction_changed", diff.RedactionChanged,
	)
}

// ─── Health ──────────────────────────────────────────────────────────────────

// Checkers returns the readiness checks of the configured subsystems.
func (a *App) Checkers() []health.Checker {
	var cs []health.Checker
	if c, ok := a.providers.LLM.(interface{ Check(context.Context) error }); ok {
		cs = append(cs, health.Checker{Name: "llm", Check: c.Check})
	}
	if a.store != nil {
		cs = append(cs, health.Checker{Name: "telemetry_store", Check: a.store.Ping})
	}
	return cs
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in reverse-init order. It respects the
// context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))
		a.cancel()

		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := a.closers[i](); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
