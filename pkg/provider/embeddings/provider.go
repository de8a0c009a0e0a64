// Package embeddings defines the Provider interface for text-embedding
// backends.
//
// The evaluation engine only uses embeddings for observability: successive
// evaluations are embedded and compared to detect drift in the feedback a
// speaker receives. Nothing on the generation path depends on this package.
//
// Implementations must be safe for concurrent use.
package embeddings

import "context"

// Provider is the abstraction over any text-embedding backend.
//
// All vectors returned by a single Provider share the same dimensionality.
// Vectors from different models must never be compared with each other.
type Provider interface {
	// Embed computes the embedding vector for text. Returns an error if the
	// request fails, the service returns no vectors, or ctx is cancelled.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the vector length produced by this provider, or 0
	// when it is not yet known.
	Dimensions() int

	// ModelID returns the provider-specific model identifier
	// (e.g. "text-embedding-3-small"). Used to tag logged similarity values.
	ModelID() string
}
