// Package evaluator is the public entry point of speechcoach. An [Engine]
// turns a transcript and its delivery metrics into a grounded evaluation,
// renders it as narration, redacts third-party names and tracks how
// consistent successive evaluations are.
//
// Generation follows a fixed ladder of stages: a full generation, one narrow
// retry per ungrounded item, a shape check, at most one regeneration, a
// short-form acceptance and finally an unvalidated best-effort generation.
// Upstream service errors and unusable replies from a full generation are
// returned to the caller; everything else is absorbed by the ladder.
package evaluator

import (
	"context"

	"github.com/MrWong99/speechcoach/internal/completion"
	"github.com/MrWong99/speechcoach/internal/evidence"
	"github.com/MrWong99/speechcoach/internal/observe"
	"github.com/MrWong99/speechcoach/internal/redact"
	"github.com/MrWong99/speechcoach/internal/script"
	"github.com/MrWong99/speechcoach/internal/telemetry"
	"github.com/MrWong99/speechcoach/pkg/provider/llm"
	"github.com/MrWong99/speechcoach/pkg/types"
)

// Option configures an [Engine].
type Option func(*Engine)

// WithMetrics sets the metric instruments. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithProviderName sets the provider label on request metrics. Default:
// "llm".
func WithProviderName(name string) Option {
	return func(e *Engine) { e.providerName = name }
}

// WithTemperature sets the sampling temperature of every completion request.
func WithTemperature(temp float64) Option {
	return func(e *Engine) { e.invokerOpts = append(e.invokerOpts, completion.WithTemperature(temp)) }
}

// WithMaxTokens caps the reply length of every completion request.
func WithMaxTokens(n int) Option {
	return func(e *Engine) { e.invokerOpts = append(e.invokerOpts, completion.WithMaxTokens(n)) }
}

// WithConsistency sets the consistency tracker used by
// [Engine.LogConsistencyTelemetry]. Without it every call logs a warning.
func WithConsistency(c *telemetry.Consistency) Option {
	return func(e *Engine) { e.consistency = c }
}

// WithRedactor replaces the default [redact.Redactor].
func WithRedactor(r *redact.Redactor) Option {
	return func(e *Engine) { e.redactor = r }
}

// Engine generates, validates, renders and redacts evaluations. Generate,
// Validate, RenderScript and Redact are safe for concurrent use.
// LogConsistencyTelemetry compares against the previous call on the same
// engine, so drift tracking needs one engine (or one session-keyed cache)
// per speaker session.
type Engine struct {
	invoker      *completion.Invoker
	invokerOpts  []completion.Option
	providerName string
	metrics      *observe.Metrics
	consistency  *telemetry.Consistency
	redactor     *redact.Redactor
}

// New returns an [Engine] that sends completion requests to provider.
func New(provider llm.Provider, opts ...Option) *Engine {
	e := &Engine{providerName: "llm"}
	for _, o := range opts {
		o(e)
	}
	if e.metrics == nil {
		e.metrics = observe.DefaultMetrics()
	}
	if e.redactor == nil {
		e.redactor = redact.New()
	}
	if e.consistency == nil {
		e.consistency = telemetry.New(nil, telemetry.WithMetrics(e.metrics))
	}
	e.invoker = completion.New(provider, e.invokerOpts...)
	return e
}

// Validate checks every item of eval against the transcript.
func (e *Engine) Validate(eval *types.StructuredEvaluation, segments []types.TranscriptSegment) evidence.Result {
	return evidence.Validate(eval, segments)
}

// RenderScript renders eval as narration. speakerName, metrics and visual
// are optional: an empty name skips the greeting, nil metrics suppress
// metric markers and nil observations suppress the visual section.
func (e *Engine) RenderScript(eval *types.StructuredEvaluation, speakerName string, metrics *types.DeliveryMetrics, visual *types.VisualObservations) string {
	return script.Render(script.Input{
		Evaluation:  eval,
		SpeakerName: speakerName,
		Metrics:     metrics,
		Visual:      visual,
	})
}

// Redact removes third-party names from the script and the evaluation.
func (e *Engine) Redact(in types.RedactionInput) types.RedactionOutput {
	return e.redactor.Redact(in)
}

// LogConsistencyTelemetry compares eval with the previous evaluation seen by
// this engine. It never fails; problems are logged as warnings.
func (e *Engine) LogConsistencyTelemetry(ctx context.Context, eval *types.StructuredEvaluation) {
	e.consistency.Log(ctx, eval)
}
