package evaluator

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/speechcoach/internal/completion"
	"github.com/MrWong99/speechcoach/internal/evidence"
	"github.com/MrWong99/speechcoach/internal/observe"
	"github.com/MrWong99/speechcoach/internal/prompt"
	"github.com/MrWong99/speechcoach/pkg/types"
)

// stage is one step of the generation ladder. Stages run in declaration
// order; shape checks may jump ahead.
type stage int

const (
	stageGenerate1 stage = iota
	stageItemRetry1
	stageShapeCheck1
	stageGenerate2
	stageItemRetry2
	stageShapeCheck2
	stageShortForm
	stageBestEffort
)

func (s stage) String() string {
	switch s {
	case stageGenerate1:
		return "generate_1"
	case stageItemRetry1:
		return "item_retry_1"
	case stageShapeCheck1:
		return "shape_check_1"
	case stageGenerate2:
		return "generate_2"
	case stageItemRetry2:
		return "item_retry_2"
	case stageShapeCheck2:
		return "shape_check_2"
	case stageShortForm:
		return "short_form"
	case stageBestEffort:
		return "best_effort"
	default:
		return "unknown"
	}
}

// Item counts an accepted evaluation must satisfy.
const (
	minCommendations   = 2
	maxCommendations   = 3
	minRecommendations = 1
	maxRecommendations = 2
)

// Item retry results reported on the item retries counter.
const (
	retryReplaced = "replaced"
	retryDropped  = "dropped"
)

// attempt is the item set of one generation after item retries. firstPass
// counts the items that were grounded without a retry.
type attempt struct {
	eval      *types.StructuredEvaluation
	firstPass int
}

func (a attempt) passRate() float64 {
	if a.eval == nil || len(a.eval.Items) == 0 {
		return 0
	}
	return float64(a.firstPass) / float64(len(a.eval.Items))
}

// run holds the per-call state of one Generate invocation.
type run struct {
	e          *Engine
	transcript []types.TranscriptSegment
	msgs       prompt.Messages
	tokens     []evidence.Token

	calls    int
	attempts int
	retries  int
	accepted string
}

// Generate produces a grounded evaluation. cfg and visual are optional.
//
// The returned error is non-nil only when a completion call fails or a full
// generation reply is unusable; such errors keep their identity
// ([completion.ErrEmptyResponse], *[completion.ParseError],
// *[completion.SchemaError] or the provider's own error). Shape violations
// never surface: the worst case is an unvalidated best-effort evaluation
// with a pass rate of 0.
func (e *Engine) Generate(ctx context.Context, transcript []types.TranscriptSegment, metrics types.DeliveryMetrics, cfg *types.EvaluationConfig, visual *types.VisualObservations) (*types.GenerateResult, error) {
	start := time.Now()
	e.metrics.ActiveGenerations.Add(ctx, 1)
	defer e.metrics.ActiveGenerations.Add(ctx, -1)

	ctx, span := observe.StartSpan(ctx, "evaluator.Generate")

	r := &run{
		e:          e,
		transcript: transcript,
		msgs: prompt.Build(prompt.Input{
			Transcript: transcript,
			Metrics:    metrics,
			Config:     cfg,
			Visual:     visual,
		}),
		tokens: evidence.Tokenize(transcript),
	}
	res, err := r.execute(ctx)

	e.metrics.GenerateDuration.Record(ctx, time.Since(start).Seconds())
	span.SetAttributes(
		attribute.Int("evaluation.calls", r.calls),
		attribute.Int("evaluation.attempts", r.attempts),
		attribute.Int("evaluation.item_retries", r.retries),
	)
	if err == nil {
		span.SetAttributes(
			attribute.String("evaluation.stage", r.accepted),
			attribute.Float64("evaluation.pass_rate", res.PassRate),
			attribute.Int("evaluation.items", len(res.Evaluation.Items)),
		)
	}
	observe.EndSpan(span, err)
	return res, err
}

func (r *run) execute(ctx context.Context) (*types.GenerateResult, error) {
	log := observe.Logger(ctx)

	var (
		cur attempt
		err error
	)
	for st := stageGenerate1; ; {
		log.Debug("evaluation stage", "stage", st.String(), "calls", r.calls)

		switch st {
		case stageGenerate1, stageGenerate2:
			var eval *types.StructuredEvaluation
			eval, err = r.generate(ctx, observe.KindGenerate)
			if err != nil {
				return nil, err
			}
			r.attempts++
			cur = attempt{eval: eval}
			st++

		case stageItemRetry1, stageItemRetry2:
			cur, err = r.retryUngrounded(ctx, cur.eval)
			if err != nil {
				return nil, err
			}
			st++

		case stageShapeCheck1:
			if fullShape(cur.eval) {
				return r.accept(ctx, cur, observe.StageAttempt1, cur.passRate()), nil
			}
			log.Debug("shape check failed", "attempt", 1,
				"commendations", cur.eval.Count(types.Commendation),
				"recommendations", cur.eval.Count(types.Recommendation))
			st = stageGenerate2

		case stageShapeCheck2:
			if fullShape(cur.eval) {
				return r.accept(ctx, cur, observe.StageAttempt2, cur.passRate()), nil
			}
			log.Debug("shape check failed", "attempt", 2,
				"commendations", cur.eval.Count(types.Commendation),
				"recommendations", cur.eval.Count(types.Recommendation))
			st = stageShortForm

		case stageShortForm:
			if shortShape(cur.eval) {
				return r.accept(ctx, cur, observe.StageShortForm, cur.passRate()), nil
			}
			st = stageBestEffort

		case stageBestEffort:
			var eval *types.StructuredEvaluation
			eval, err = r.generate(ctx, observe.KindBestEffort)
			if err != nil {
				return nil, err
			}
			r.attempts++
			log.Warn("accepting unvalidated best-effort evaluation", "items", len(eval.Items))
			return r.accept(ctx, attempt{eval: eval}, observe.StageBestEffort, 0), nil
		}
	}
}

// generate issues one full generation request.
func (r *run) generate(ctx context.Context, kind string) (*types.StructuredEvaluation, error) {
	r.calls++
	start := time.Now()
	eval, err := r.e.invoker.Evaluate(ctx, r.msgs)
	r.recordCall(ctx, kind, start, err)
	return eval, err
}

// retryUngrounded validates every item of eval in order and gives each
// ungrounded item exactly one narrow retry. Items whose retry fails are
// dropped. eval is not modified.
func (r *run) retryUngrounded(ctx context.Context, eval *types.StructuredEvaluation) (attempt, error) {
	out := eval.Clone()
	out.Items = make([]types.EvaluationItem, 0, len(eval.Items))
	firstPass := 0

	for i, item := range eval.Items {
		issues := evidence.ValidateItem(i, item, r.tokens)
		if len(issues) == 0 {
			out.Items = append(out.Items, item)
			firstPass++
			continue
		}
		observe.Logger(ctx).Debug("item failed grounding", "item", i, "type", string(item.Type), "issues", issues)

		replacement, ok, err := r.retryItem(ctx, i, item, issues)
		if err != nil {
			return attempt{}, err
		}
		if ok {
			out.Items = append(out.Items, replacement)
		}
	}
	return attempt{eval: out, firstPass: firstPass}, nil
}

// retryItem asks for a replacement of item. It reports ok only when the
// reply is a grounded item of the same type. An unusable reply counts as a
// failed retry; a failed call is returned as an error.
func (r *run) retryItem(ctx context.Context, index int, item types.EvaluationItem, issues []string) (types.EvaluationItem, bool, error) {
	log := observe.Logger(ctx)
	msgs := prompt.BuildItemRetry(prompt.RetryInput{
		Transcript: r.transcript,
		Item:       item,
		Issue:      strings.Join(issues, "; "),
	})

	r.calls++
	r.retries++
	start := time.Now()
	replacement, err := r.e.invoker.RetryItem(ctx, msgs)
	r.recordCall(ctx, observe.KindItemRetry, start, err)

	switch {
	case err != nil && !completion.IsResponseError(err):
		return types.EvaluationItem{}, false, err
	case err != nil:
		log.Debug("item retry unusable, dropping item", "item", index, "err", err)
	case replacement.Type != item.Type:
		log.Debug("item retry changed type, dropping item", "item", index,
			"want", string(item.Type), "got", string(replacement.Type))
	default:
		if issues := evidence.ValidateItem(index, replacement, r.tokens); len(issues) > 0 {
			log.Debug("item retry still ungrounded, dropping item", "item", index, "issues", issues)
			break
		}
		r.e.metrics.RecordItemRetry(ctx, retryReplaced)
		return replacement, true, nil
	}
	r.e.metrics.RecordItemRetry(ctx, retryDropped)
	return types.EvaluationItem{}, false, nil
}

func (r *run) recordCall(ctx context.Context, kind string, start time.Time, err error) {
	m := r.e.metrics
	m.ProviderDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("kind", kind)))
	if err != nil {
		m.RecordProviderRequest(ctx, r.e.providerName, kind, "error")
		m.RecordProviderError(ctx, r.e.providerName, kind)
		return
	}
	m.RecordProviderRequest(ctx, r.e.providerName, kind, "ok")
}

func (r *run) accept(ctx context.Context, a attempt, stage string, passRate float64) *types.GenerateResult {
	r.accepted = stage
	r.e.metrics.RecordOutcome(ctx, stage, passRate)
	observe.Logger(ctx).Info("evaluation accepted",
		"stage", stage,
		"items", len(a.eval.Items),
		"pass_rate", passRate,
		"calls", r.calls,
	)
	return &types.GenerateResult{Evaluation: a.eval, PassRate: passRate}
}

func fullShape(e *types.StructuredEvaluation) bool {
	c, r := e.Count(types.Commendation), e.Count(types.Recommendation)
	return c >= minCommendations && c <= maxCommendations &&
		r >= minRecommendations && r <= maxRecommendations
}

func shortShape(e *types.StructuredEvaluation) bool {
	return e.Count(types.Commendation) >= 1 && e.Count(types.Recommendation) >= 1
}
