// Package telemetry tracks how consistent successive evaluations are.
//
// Each accepted evaluation's item summaries are embedded and compared with
// the previous evaluation's vector by cosine similarity. The result is
// observability data only: it is logged and recorded as a metric, and no
// failure in this package ever reaches the caller.
package telemetry

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/speechcoach/internal/observe"
	"github.com/MrWong99/speechcoach/pkg/provider/embeddings"
	"github.com/MrWong99/speechcoach/pkg/types"
)

var errNoProvider = errors.New("telemetry: no embedding provider configured")

// Option is a functional option for configuring a [Consistency].
type Option func(*Consistency)

// WithCache replaces the default single-slot in-memory cache, e.g. with a
// per-session PostgreSQL cache.
func WithCache(c VectorCache) Option {
	return func(t *Consistency) {
		t.cache = c
	}
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(t *Consistency) {
		t.metrics = m
	}
}

// WithProviderName sets the provider label used on request metrics.
func WithProviderName(name string) Option {
	return func(t *Consistency) {
		t.providerName = name
	}
}

// Consistency compares each evaluation with the previous one. The cache is
// instance state; use one instance (or one session-keyed cache) per
// speaker session to keep drift tracking isolated.
type Consistency struct {
	// mu serialises the load-compare-save step so concurrent evaluations
	// of one session each compare against their predecessor.
	mu sync.Mutex

	embedder     embeddings.Provider
	cache        VectorCache
	metrics      *observe.Metrics
	providerName string
}

// New returns a [Consistency] backed by embedder. embedder may be nil, in
// which case every [Consistency.Log] call logs a warning and returns.
func New(embedder embeddings.Provider, opts ...Option) *Consistency {
	c := &Consistency{
		embedder:     embedder,
		cache:        NewMemoryCache(),
		providerName: "embeddings",
	}
	for _, o := range opts {
		o(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	return c
}

// Log embeds eval's item summaries, compares them with the cached vector
// and caches the new one. It returns the similarity and whether a
// comparison took place. Failures are logged as warnings and never returned.
func (c *Consistency) Log(ctx context.Context, eval *types.StructuredEvaluation) (similarity float64, compared bool) {
	log := observe.Logger(ctx)

	sim, compared, err := c.observe(ctx, eval)
	if err != nil {
		log.Warn("consistency telemetry failed", "err", err)
		return 0, false
	}
	if !compared {
		log.Info("consistency telemetry: first evaluation", "model", c.embedder.ModelID())
		return 0, false
	}
	log.Info("consistency telemetry", "model", c.embedder.ModelID(), "similarity", sim)
	c.metrics.RecordSimilarity(ctx, c.embedder.ModelID(), sim)
	return sim, true
}

func (c *Consistency) observe(ctx context.Context, eval *types.StructuredEvaluation) (float64, bool, error) {
	if c.embedder == nil {
		return 0, false, errNoProvider
	}
	if eval == nil || len(eval.Items) == 0 {
		return 0, false, errors.New("telemetry: evaluation has no items")
	}

	summaries := make([]string, 0, len(eval.Items))
	for _, it := range eval.Items {
		summaries = append(summaries, it.Summary)
	}

	model := c.embedder.ModelID()
	start := time.Now()
	vec, err := c.embedder.Embed(ctx, strings.Join(summaries, ". "))
	c.metrics.ProviderDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		c.metrics.RecordProviderRequest(ctx, c.providerName, observe.KindEmbed, "error")
		c.metrics.RecordProviderError(ctx, c.providerName, observe.KindEmbed)
		return 0, false, err
	}
	c.metrics.RecordProviderRequest(ctx, c.providerName, observe.KindEmbed, "ok")
	if len(vec) == 0 {
		return 0, false, errors.New("telemetry: empty embedding")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	prev, ok, err := c.cache.Load(ctx)
	if err != nil {
		return 0, false, err
	}
	if err := c.cache.Save(ctx, Vector{Model: model, Values: vec}); err != nil {
		return 0, false, err
	}
	if !ok || prev.Model != model {
		return 0, false, nil
	}
	return CosineSimilarity(prev.Values, vec), true, nil
}

// CosineSimilarity returns dot(a,b)/(|a|*|b|). It returns exactly 0 for
// empty, mismatched-length or all-zero inputs.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	// Rounding can push parallel vectors marginally past ±1.
	return math.Max(-1, math.Min(1, sim))
}
