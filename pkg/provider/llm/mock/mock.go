// Package mock provides a test double for the llm.Provider interface.
//
// Use Provider in unit tests to verify the requests the engine sends and to
// feed a scripted sequence of replies without a live backend.
//
// Example:
//
//	p := &mock.Provider{
//	    Responses: []mock.Response{
//	        {Content: `{"opening":"Hi", ...}`},
//	        {Err: errors.New("boom")},
//	    },
//	}
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/speechcoach/pkg/provider/llm"
)

// CompleteCall records a single invocation of Complete.
type CompleteCall struct {
	// Ctx is the context passed to Complete.
	Ctx context.Context
	// Req is the CompletionRequest passed to Complete.
	Req llm.CompletionRequest
}

// Response is one scripted reply. When Err is non-nil it is returned instead
// of a response.
type Response struct {
	Content string
	Err     error
}

// Provider is a mock implementation of llm.Provider.
//
// Replies are taken from Responses in order. Once Responses is exhausted,
// CompleteResponse and CompleteErr are returned for every further call.
// Set Handler to compute replies dynamically; it takes precedence over both.
type Provider struct {
	mu sync.Mutex

	// Handler, if non-nil, produces the reply for each call.
	Handler func(req llm.CompletionRequest) (*llm.CompletionResponse, error)

	// Responses is the scripted reply sequence.
	Responses []Response

	// CompleteResponse is returned once Responses is exhausted. May be nil.
	CompleteResponse *llm.CompletionResponse

	// CompleteErr, if non-nil, is returned once Responses is exhausted.
	CompleteErr error

	// CompleteCalls records every invocation of Complete in order.
	CompleteCalls []CompleteCall

	next int
}

// Complete records the call and returns the next scripted reply.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	msgs := make([]llm.Message, len(req.Messages))
	copy(msgs, req.Messages)
	req.Messages = msgs
	p.CompleteCalls = append(p.CompleteCalls, CompleteCall{Ctx: ctx, Req: req})

	if p.Handler != nil {
		return p.Handler(req)
	}
	if p.next < len(p.Responses) {
		r := p.Responses[p.next]
		p.next++
		if r.Err != nil {
			return nil, r.Err
		}
		return &llm.CompletionResponse{Content: r.Content}, nil
	}
	return p.CompleteResponse, p.CompleteErr
}

// CallCount returns the number of Complete invocations so far. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.CompleteCalls)
}

// Reset clears recorded calls and rewinds the scripted sequence. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CompleteCalls = nil
	p.next = 0
}

// Ensure Provider implements llm.Provider at compile time.
var _ llm.Provider = (*Provider)(nil)
