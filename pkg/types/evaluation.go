package types

// ItemType distinguishes praise items from improvement suggestions.
type ItemType string

const (
	Commendation   ItemType = "commendation"
	Recommendation ItemType = "recommendation"
)

// IsValid reports whether t is a recognised item type.
func (t ItemType) IsValid() bool {
	return t == Commendation || t == Recommendation
}

// VisualObservationType is the only accepted type tag for visual feedback items.
const VisualObservationType = "visual_observation"

// EvaluationItem is a single commendation or recommendation. After
// validation, EvidenceQuote is a verbatim transcript excerpt located within
// tolerance of EvidenceTimestamp (seconds).
type EvaluationItem struct {
	Type              ItemType `json:"type"`
	Summary           string   `json:"summary"`
	EvidenceQuote     string   `json:"evidence_quote"`
	EvidenceTimestamp float64  `json:"evidence_timestamp"`
	Explanation       string   `json:"explanation"`
}

// StructureCommentary holds optional remarks on the speech's opening, body
// and closing. Each field is nil or a non-empty string.
type StructureCommentary struct {
	OpeningComment *string `json:"opening_comment"`
	BodyComment    *string `json:"body_comment"`
	ClosingComment *string `json:"closing_comment"`
}

// IsEmpty reports whether all three comments are nil.
func (c StructureCommentary) IsEmpty() bool {
	return c.OpeningComment == nil && c.BodyComment == nil && c.ClosingComment == nil
}

// VisualFeedbackItem is a remark grounded in an aggregate visual metric.
// ObservationData has the machine-checkable form
// "metric=<path>; value=<v>; source=visualObservations".
type VisualFeedbackItem struct {
	Type            string `json:"type"`
	Summary         string `json:"summary"`
	ObservationData string `json:"observation_data"`
	Explanation     string `json:"explanation"`
}

// StructuredEvaluation is the evaluation produced by the completion service
// and accepted by the orchestrator.
type StructuredEvaluation struct {
	Opening             string               `json:"opening"`
	Items               []EvaluationItem     `json:"items"`
	Closing             string               `json:"closing"`
	StructureCommentary StructureCommentary  `json:"structure_commentary"`
	VisualFeedback      []VisualFeedbackItem `json:"visual_feedback,omitempty"`
}

// Count returns the number of items of type t.
func (e *StructuredEvaluation) Count(t ItemType) int {
	n := 0
	for _, it := range e.Items {
		if it.Type == t {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of e.
func (e *StructuredEvaluation) Clone() *StructuredEvaluation {
	if e == nil {
		return nil
	}
	out := *e
	out.Items = append([]EvaluationItem(nil), e.Items...)
	if e.VisualFeedback != nil {
		out.VisualFeedback = append([]VisualFeedbackItem(nil), e.VisualFeedback...)
	}
	out.StructureCommentary = StructureCommentary{
		OpeningComment: cloneString(e.StructureCommentary.OpeningComment),
		BodyComment:    cloneString(e.StructureCommentary.BodyComment),
		ClosingComment: cloneString(e.StructureCommentary.ClosingComment),
	}
	return &out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// StructuredEvaluationPublic has the same shape as [StructuredEvaluation]
// with every free-text field passed through the redactor. It is only
// produced when a consent record exists.
type StructuredEvaluationPublic StructuredEvaluation

// EvaluationConfig carries optional per-request project context.
type EvaluationConfig struct {
	Objectives  []string `json:"objectives,omitempty"`
	ProjectType string   `json:"projectType,omitempty"`
	SpeechTitle string   `json:"speechTitle,omitempty"`
}

// GenerateResult is the outcome of a generation run. PassRate is the share
// of delivered items that needed no item-level retry; it is 0 when the
// best-effort fallback was used.
type GenerateResult struct {
	Evaluation *StructuredEvaluation `json:"evaluation"`
	PassRate   float64               `json:"passRate"`
}
