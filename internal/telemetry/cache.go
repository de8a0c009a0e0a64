package telemetry

import (
	"context"
	"slices"
	"sync"
)

// Vector is an embedding tagged with the model that produced it. Vectors
// from different models are never compared.
type Vector struct {
	Model  string
	Values []float32
}

// VectorCache holds the most recent evaluation vector for one tracking key
// (an engine instance or a session).
type VectorCache interface {
	// Load returns the cached vector. ok is false when nothing is cached yet.
	Load(ctx context.Context) (v Vector, ok bool, err error)

	// Save replaces the cached vector.
	Save(ctx context.Context, v Vector) error
}

// MemoryCache is a single-slot in-process [VectorCache]. It is safe for
// concurrent use.
type MemoryCache struct {
	mu  sync.Mutex
	v   Vector
	set bool
}

var _ VectorCache = (*MemoryCache)(nil)

// NewMemoryCache returns an empty [MemoryCache].
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{}
}

// Load implements [VectorCache].
func (c *MemoryCache) Load(_ context.Context) (Vector, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.set {
		return Vector{}, false, nil
	}
	return Vector{Model: c.v.Model, Values: slices.Clone(c.v.Values)}, true, nil
}

// Save implements [VectorCache].
func (c *MemoryCache) Save(_ context.Context, v Vector) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.v = Vector{Model: v.Model, Values: slices.Clone(v.Values)}
	c.set = true
	return nil
}
