package completion_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/MrWong99/speechcoach/internal/completion"
	"github.com/MrWong99/speechcoach/internal/prompt"
	"github.com/MrWong99/speechcoach/pkg/provider/llm"
	"github.com/MrWong99/speechcoach/pkg/provider/llm/mock"
	"github.com/MrWong99/speechcoach/pkg/types"
)

const validEvaluation = `{
  "opening": "Thank you for a heartfelt speech.",
  "items": [
    {"type": "commendation", "summary": "Strong opening", "evidence_quote": "today I want to talk about leadership and growth", "evidence_timestamp": 2, "explanation": "It set the theme."},
    {"type": "recommendation", "summary": "Slow down", "evidence_quote": "I was terrified of speaking up in meetings", "evidence_timestamp": 31.5, "explanation": "Let the pace breathe."}
  ],
  "closing": "Keep growing.",
  "structure_commentary": {"opening_comment": "A clear hook.", "body_comment": "", "closing_comment": null},
  "visual_feedback": [
    {"type": "visual_observation", "summary": "Good eye contact", "observation_data": "metric=gazeBreakdown.audienceFacing; value=65.5; source=visualObservations", "explanation": "You faced the audience."},
    {"type": "gesture", "summary": "x", "observation_data": "y", "explanation": "z"},
    {"type": "visual_observation", "summary": "missing data", "explanation": "z"},
    "not an object"
  ]
}`

var msgs = prompt.Messages{System: "system", User: "user"}

func TestEvaluate_RequestShape(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{Responses: []mock.Response{{Content: validEvaluation}}}
	inv := completion.New(p, completion.WithTemperature(0.7), completion.WithMaxTokens(999))

	if _, err := inv.Evaluate(context.Background(), msgs); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if p.CallCount() != 1 {
		t.Fatalf("CallCount = %d, want 1", p.CallCount())
	}
	req := p.CompleteCalls[0].Req
	if req.ResponseFormat != llm.ResponseFormatJSON {
		t.Errorf("ResponseFormat = %q, want JSON", req.ResponseFormat)
	}
	if req.Temperature != 0.7 || req.MaxTokens != 999 {
		t.Errorf("Temperature/MaxTokens = %v/%d", req.Temperature, req.MaxTokens)
	}
	if len(req.Messages) != 2 || req.Messages[0].Role != llm.RoleSystem || req.Messages[1].Role != llm.RoleUser {
		t.Errorf("unexpected messages: %+v", req.Messages)
	}
	if req.Messages[0].Content != "system" || req.Messages[1].Content != "user" {
		t.Errorf("message content not forwarded: %+v", req.Messages)
	}
}

func TestEvaluate_Normalisation(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{Responses: []mock.Response{{Content: "```json\n" + validEvaluation + "\n```"}}}
	eval, err := completion.New(p).Evaluate(context.Background(), msgs)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if len(eval.Items) != 2 {
		t.Fatalf("len(Items) = %d, want 2", len(eval.Items))
	}
	if eval.Items[1].Type != types.Recommendation || eval.Items[1].EvidenceTimestamp != 31.5 {
		t.Errorf("item 1 = %+v", eval.Items[1])
	}

	sc := eval.StructureCommentary
	if sc.OpeningComment == nil || *sc.OpeningComment != "A clear hook." {
		t.Errorf("OpeningComment = %v", sc.OpeningComment)
	}
	if sc.BodyComment != nil {
		t.Errorf("empty body_comment should normalise to nil, got %q", *sc.BodyComment)
	}
	if sc.ClosingComment != nil {
		t.Error("null closing_comment should stay nil")
	}

	if len(eval.VisualFeedback) != 1 || eval.VisualFeedback[0].Summary != "Good eye contact" {
		t.Errorf("VisualFeedback = %+v, want only the well-formed entry", eval.VisualFeedback)
	}
}

func TestParseEvaluation_StructureCommentaryVariants(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{"absent", `{"opening":"o","items":[],"closing":"c"}`},
		{"null", `{"opening":"o","items":[],"closing":"c","structure_commentary":null}`},
		{"array", `{"opening":"o","items":[],"closing":"c","structure_commentary":["a"]}`},
		{"string", `{"opening":"o","items":[],"closing":"c","structure_commentary":"fine"}`},
		{"non string fields", `{"opening":"o","items":[],"closing":"c","structure_commentary":{"opening_comment":5,"body_comment":"  ","closing_comment":false}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			eval, err := completion.ParseEvaluation(tt.content)
			if err != nil {
				t.Fatalf("ParseEvaluation: %v", err)
			}
			if !eval.StructureCommentary.IsEmpty() {
				t.Errorf("StructureCommentary = %+v, want all nil", eval.StructureCommentary)
			}
		})
	}
}

func TestParseEvaluation_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		content   string
		wantEmpty bool
		wantParse bool
		wantField string
	}{
		{name: "empty", content: "", wantEmpty: true},
		{name: "whitespace", content: "  \n ", wantEmpty: true},
		{name: "only fences", content: "```json\n```", wantEmpty: true},
		{name: "not json", content: "Here is your evaluation!", wantParse: true},
		{name: "truncated", content: `{"opening": "hi", "items": [`, wantParse: true},
		{name: "array root", content: `[1,2]`, wantField: "response object"},
		{name: "missing opening", content: `{"items":[],"closing":"c"}`, wantField: "opening"},
		{name: "opening wrong type", content: `{"opening":1,"items":[],"closing":"c"}`, wantField: "opening"},
		{name: "missing closing", content: `{"opening":"o","items":[]}`, wantField: "closing"},
		{name: "items not array", content: `{"opening":"o","items":{},"closing":"c"}`, wantField: "items"},
		{name: "item not object", content: `{"opening":"o","items":["x"],"closing":"c"}`, wantField: "items[0]"},
		{
			name:      "bad item type",
			content:   `{"opening":"o","items":[{"type":"praise","summary":"s","evidence_quote":"q","evidence_timestamp":1,"explanation":"e"}],"closing":"c"}`,
			wantField: "items[0].type",
		},
		{
			name:      "timestamp as string",
			content:   `{"opening":"o","items":[{"type":"commendation","summary":"s","evidence_quote":"q","evidence_timestamp":"1","explanation":"e"}],"closing":"c"}`,
			wantField: "items[0].evidence_timestamp",
		},
		{
			name:      "second item missing quote",
			content:   `{"opening":"o","items":[{"type":"commendation","summary":"s","evidence_quote":"q","evidence_timestamp":1,"explanation":"e"},{"type":"recommendation","summary":"s","evidence_timestamp":1,"explanation":"e"}],"closing":"c"}`,
			wantField: "items[1].evidence_quote",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := completion.ParseEvaluation(tt.content)
			if err == nil {
				t.Fatal("expected error")
			}
			if got := errors.Is(err, completion.ErrEmptyResponse); got != tt.wantEmpty {
				t.Errorf("errors.Is(ErrEmptyResponse) = %v, want %v (err=%v)", got, tt.wantEmpty, err)
			}
			var pe *completion.ParseError
			if got := errors.As(err, &pe); got != tt.wantParse {
				t.Errorf("errors.As(*ParseError) = %v, want %v (err=%v)", got, tt.wantParse, err)
			}
			var se *completion.SchemaError
			if tt.wantField != "" {
				if !errors.As(err, &se) {
					t.Fatalf("expected *SchemaError, got %v", err)
				}
				if se.Field != tt.wantField {
					t.Errorf("Field = %q, want %q", se.Field, tt.wantField)
				}
				if want := "completion: missing or invalid " + tt.wantField; se.Error() != want {
					t.Errorf("Error() = %q, want %q", se.Error(), want)
				}
			}
		})
	}
}

func TestEvaluate_ProviderErrorsKeepIdentity(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("upstream timeout")
	p := &mock.Provider{CompleteErr: sentinel}
	_, err := completion.New(p).Evaluate(context.Background(), msgs)
	if !errors.Is(err, sentinel) {
		t.Errorf("errors.Is(err, sentinel) = false, err = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p = &mock.Provider{Handler: func(llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return nil, ctx.Err()
	}}
	_, err = completion.New(p).Evaluate(ctx, msgs)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("errors.Is(err, context.Canceled) = false, err = %v", err)
	}
}

func TestEvaluate_NilResponseIsEmpty(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{}
	_, err := completion.New(p).Evaluate(context.Background(), msgs)
	if !errors.Is(err, completion.ErrEmptyResponse) {
		t.Errorf("err = %v, want ErrEmptyResponse", err)
	}
}

func TestRetryItem(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{Responses: []mock.Response{
		{Content: `{"type":"commendation","summary":"s","evidence_quote":"q q q q q q","evidence_timestamp":12,"explanation":"e"}`},
		{Content: `{"opening":"o","items":[],"closing":"c"}`},
	}}
	inv := completion.New(p)

	it, err := inv.RetryItem(context.Background(), msgs)
	if err != nil {
		t.Fatalf("RetryItem: %v", err)
	}
	if it.Type != types.Commendation || it.EvidenceTimestamp != 12 {
		t.Errorf("item = %+v", it)
	}
	if p.CompleteCalls[0].Req.ResponseFormat != llm.ResponseFormatJSON {
		t.Error("retry should request JSON mode")
	}

	_, err = inv.RetryItem(context.Background(), msgs)
	var se *completion.SchemaError
	if !errors.As(err, &se) || se.Field != "type" {
		t.Errorf("full evaluation is not a valid item: err = %v", err)
	}
}

func TestIsResponseError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "empty", err: completion.ErrEmptyResponse, want: true},
		{name: "parse", err: &completion.ParseError{Err: errors.New("bad json")}, want: true},
		{name: "schema", err: &completion.SchemaError{Field: "opening"}, want: true},
		{name: "wrapped schema", err: fmt.Errorf("evaluator: %w", &completion.SchemaError{Field: "items"}), want: true},
		{name: "transport", err: errors.New("connection reset"), want: false},
		{name: "cancelled", err: context.Canceled, want: false},
		{name: "nil", err: nil, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := completion.IsResponseError(tt.err); got != tt.want {
				t.Errorf("IsResponseError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
