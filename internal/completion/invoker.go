// Package completion issues evaluation requests to a completion service and
// turns the untrusted reply into a closed, validated structure before any
// other component sees it.
//
// Every call sends exactly one request in JSON response mode. Failures are
// typed: [ErrEmptyResponse] for a blank reply, [*ParseError] for invalid
// JSON and [*SchemaError] for a reply whose shape does not match. Transport
// errors from the provider are wrapped and keep their identity for
// [errors.Is] and [errors.As].
package completion

import (
	"context"
	"fmt"

	"github.com/MrWong99/speechcoach/internal/observe"
	"github.com/MrWong99/speechcoach/internal/prompt"
	"github.com/MrWong99/speechcoach/pkg/provider/llm"
	"github.com/MrWong99/speechcoach/pkg/types"
)

const (
	defaultTemperature = 0.3
	defaultMaxTokens   = 2048
)

// Option is a functional option for configuring an [Invoker].
type Option func(*Invoker)

// WithTemperature sets the sampling temperature. Default: 0.3.
func WithTemperature(temp float64) Option {
	return func(i *Invoker) {
		i.temperature = temp
	}
}

// WithMaxTokens caps the completion length. Default: 2048.
func WithMaxTokens(n int) Option {
	return func(i *Invoker) {
		i.maxTokens = n
	}
}

// Invoker sends prompts to an [llm.Provider] and parses the replies. It is
// safe for concurrent use when the provider is.
type Invoker struct {
	llm         llm.Provider
	temperature float64
	maxTokens   int
}

// New returns an [Invoker] backed by provider.
func New(provider llm.Provider, opts ...Option) *Invoker {
	i := &Invoker{
		llm:         provider,
		temperature: defaultTemperature,
		maxTokens:   defaultMaxTokens,
	}
	for _, o := range opts {
		o(i)
	}
	return i
}

// Evaluate requests a full evaluation and parses it.
func (i *Invoker) Evaluate(ctx context.Context, msgs prompt.Messages) (*types.StructuredEvaluation, error) {
	content, err := i.complete(ctx, msgs)
	if err != nil {
		return nil, fmt.Errorf("completion: evaluate: %w", err)
	}
	eval, err := ParseEvaluation(content)
	if err != nil {
		return nil, err
	}
	return eval, nil
}

// RetryItem requests a single replacement item and parses it against the
// item schema alone.
func (i *Invoker) RetryItem(ctx context.Context, msgs prompt.Messages) (types.EvaluationItem, error) {
	content, err := i.complete(ctx, msgs)
	if err != nil {
		return types.EvaluationItem{}, fmt.Errorf("completion: retry item: %w", err)
	}
	return ParseItem(content)
}

func (i *Invoker) complete(ctx context.Context, msgs prompt.Messages) (string, error) {
	req := llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: msgs.System},
			{Role: llm.RoleUser, Content: msgs.User},
		},
		Temperature:    i.temperature,
		MaxTokens:      i.maxTokens,
		ResponseFormat: llm.ResponseFormatJSON,
	}
	resp, err := i.llm.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", nil
	}
	observe.Logger(ctx).Debug("completion received",
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"content_bytes", len(resp.Content),
	)
	return resp.Content, nil
}
