// Package llm defines the Provider interface for completion-service backends.
//
// A provider wraps a remote or local model API (OpenAI, Anthropic, Gemini, a
// local Ollama instance, ...) and exposes a single request/response call so
// that the evaluation engine never couples to a specific SDK or wire
// protocol.
//
// Implementors must be safe for concurrent use and must propagate context
// cancellation promptly.
package llm

import "context"

// ResponseFormat selects the shape of the model's reply.
type ResponseFormat string

const (
	// ResponseFormatText is free-form text (provider default).
	ResponseFormatText ResponseFormat = ""

	// ResponseFormatJSON asks the provider to constrain output to a single
	// JSON object. Providers without a native JSON mode ignore it; callers
	// must still validate the returned content.
	ResponseFormatJSON ResponseFormat = "json_object"
)

// Usage holds token accounting information returned by the backend.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest carries everything the model needs to produce a reply.
// At minimum Messages must be non-empty.
type CompletionRequest struct {
	// Messages is the ordered conversation, typically one "system" and one
	// "user" message.
	Messages []Message

	// Temperature controls output randomness in the range [0.0, 2.0]. Zero
	// means provider default.
	Temperature float64

	// MaxTokens caps the number of completion tokens. Zero means provider
	// default.
	MaxTokens int

	// ResponseFormat requests JSON-only output when set to ResponseFormatJSON.
	ResponseFormat ResponseFormat
}

// CompletionResponse is the reply to a single CompletionRequest.
type CompletionResponse struct {
	// Content is the text of the first choice. Empty when the service
	// returned no content (a null message body).
	Content string

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// Provider is the abstraction over any completion backend.
type Provider interface {
	// Complete sends req to the model and waits for the full reply.
	//
	// Returns an error if the request fails, the service returns no choices,
	// or ctx is cancelled. A reply with a null body is returned as a response
	// with empty Content, not as an error.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
