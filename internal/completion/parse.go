package completion

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MrWong99/speechcoach/pkg/types"
)

// ParseEvaluation validates content field by field into a
// [types.StructuredEvaluation]. opening, items and closing are required.
// structure_commentary and visual_feedback are normalised leniently.
func ParseEvaluation(content string) (*types.StructuredEvaluation, error) {
	obj, err := decodeObject(content)
	if err != nil {
		return nil, err
	}

	opening, ok := obj["opening"].(string)
	if !ok {
		return nil, &SchemaError{Field: "opening"}
	}
	closing, ok := obj["closing"].(string)
	if !ok {
		return nil, &SchemaError{Field: "closing"}
	}
	rawItems, ok := obj["items"].([]any)
	if !ok {
		return nil, &SchemaError{Field: "items"}
	}

	items := make([]types.EvaluationItem, 0, len(rawItems))
	for i, raw := range rawItems {
		it, err := parseItem(raw, fmt.Sprintf("items[%d].", i))
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}

	return &types.StructuredEvaluation{
		Opening:             opening,
		Items:               items,
		Closing:             closing,
		StructureCommentary: parseCommentary(obj["structure_commentary"]),
		VisualFeedback:      parseVisualFeedback(obj["visual_feedback"]),
	}, nil
}

// ParseItem validates content as a single evaluation item.
func ParseItem(content string) (types.EvaluationItem, error) {
	obj, err := decodeObject(content)
	if err != nil {
		return types.EvaluationItem{}, err
	}
	return parseItem(obj, "")
}

func decodeObject(content string) (map[string]any, error) {
	cleaned := stripMarkdown(content)
	if cleaned == "" {
		return nil, ErrEmptyResponse
	}
	var v any
	if err := json.Unmarshal([]byte(cleaned), &v); err != nil {
		return nil, &ParseError{Content: cleaned, Err: err}
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, &SchemaError{Field: "response object"}
	}
	return obj, nil
}

func parseItem(raw any, prefix string) (types.EvaluationItem, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return types.EvaluationItem{}, &SchemaError{Field: strings.TrimSuffix(prefix, ".")}
	}

	typ, _ := obj["type"].(string)
	if !types.ItemType(typ).IsValid() {
		return types.EvaluationItem{}, &SchemaError{Field: prefix + "type"}
	}
	var it types.EvaluationItem
	it.Type = types.ItemType(typ)

	for _, f := range []struct {
		name string
		dst  *string
	}{
		{"summary", &it.Summary},
		{"evidence_quote", &it.EvidenceQuote},
		{"explanation", &it.Explanation},
	} {
		s, ok := obj[f.name].(string)
		if !ok {
			return types.EvaluationItem{}, &SchemaError{Field: prefix + f.name}
		}
		*f.dst = s
	}

	ts, ok := obj["evidence_timestamp"].(float64)
	if !ok || ts < 0 {
		return types.EvaluationItem{}, &SchemaError{Field: prefix + "evidence_timestamp"}
	}
	it.EvidenceTimestamp = ts
	return it, nil
}

// parseCommentary treats a non-object as absent and normalises empty or
// non-string sub-fields to nil.
func parseCommentary(raw any) types.StructureCommentary {
	obj, ok := raw.(map[string]any)
	if !ok {
		return types.StructureCommentary{}
	}
	return types.StructureCommentary{
		OpeningComment: nonEmpty(obj["opening_comment"]),
		BodyComment:    nonEmpty(obj["body_comment"]),
		ClosingComment: nonEmpty(obj["closing_comment"]),
	}
}

func nonEmpty(v any) *string {
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

// parseVisualFeedback keeps only well-formed visual_observation entries.
func parseVisualFeedback(raw any) []types.VisualFeedbackItem {
	arr, ok := raw.([]any)
	if !ok {
		return nil
	}
	var out []types.VisualFeedbackItem
	for _, el := range arr {
		obj, ok := el.(map[string]any)
		if !ok {
			continue
		}
		typ, _ := obj["type"].(string)
		summary, _ := obj["summary"].(string)
		data, _ := obj["observation_data"].(string)
		explanation, _ := obj["explanation"].(string)
		if typ != types.VisualObservationType || summary == "" || data == "" || explanation == "" {
			continue
		}
		out = append(out, types.VisualFeedbackItem{
			Type:            typ,
			Summary:         summary,
			ObservationData: data,
			Explanation:     explanation,
		})
	}
	return out
}

// stripMarkdown removes optional markdown code fences (```json ... ```) that
// some models wrap around JSON output even in JSON mode.
func stripMarkdown(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```json", "```JSON", "```"} {
		if after, ok := strings.CutPrefix(s, prefix); ok {
			s = after
			break
		}
	}
	if before, ok := strings.CutSuffix(s, "```"); ok {
		s = before
	}
	return strings.TrimSpace(s)
}
