// Package mock provides a test double for the embeddings.Provider interface.
//
// Example:
//
//	p := &mock.Provider{
//	    Vectors:      [][]float32{{1, 0}, {1, 1}},
//	    ModelIDValue: "test-embed-v1",
//	}
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/speechcoach/pkg/provider/embeddings"
)

// EmbedCall records a single invocation of Embed.
type EmbedCall struct {
	// Ctx is the context passed to Embed.
	Ctx context.Context
	// Text is the string passed to Embed.
	Text string
}

// Provider is a mock implementation of embeddings.Provider.
//
// Embed returns Vectors in order; once exhausted it keeps returning
// EmbedResult. EmbedErr, when set, is returned for every call.
type Provider struct {
	mu sync.Mutex

	// Vectors is the scripted sequence of vectors returned by Embed.
	Vectors [][]float32

	// EmbedResult is returned once Vectors is exhausted.
	EmbedResult []float32

	// EmbedErr, if non-nil, is returned as the error from Embed.
	EmbedErr error

	// DimensionsValue is returned by Dimensions.
	DimensionsValue int

	// ModelIDValue is returned by ModelID.
	ModelIDValue string

	// EmbedCalls records every call to Embed in order.
	EmbedCalls []EmbedCall

	next int
}

// Embed records the call and returns the next scripted vector.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.EmbedCalls = append(p.EmbedCalls, EmbedCall{Ctx: ctx, Text: text})
	if p.EmbedErr != nil {
		return nil, p.EmbedErr
	}
	if p.next < len(p.Vectors) {
		v := p.Vectors[p.next]
		p.next++
		return v, nil
	}
	return p.EmbedResult, nil
}

// Dimensions returns DimensionsValue.
func (p *Provider) Dimensions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.DimensionsValue
}

// ModelID returns ModelIDValue.
func (p *Provider) ModelID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ModelIDValue
}

// Ensure Provider implements embeddings.Provider at compile time.
var _ embeddings.Provider = (*Provider)(nil)
