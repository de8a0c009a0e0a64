// Package script renders an accepted evaluation into a single narration for
// speech synthesis.
//
// The narration carries inline markers that downstream consumers strip
// before synthesis: "[[Q:item-N]]" follows the sentence quoting item N
// (zero-based), and "[[M:<field>]]" follows an explanation sentence that
// talks about a delivery metric. Rendering is pure; redaction happens later
// as a separate step.
package script

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/MrWong99/speechcoach/internal/evidence"
	"github.com/MrWong99/speechcoach/pkg/types"
)

const (
	commendationLeadIn   = "Something that really stood out"
	recommendationLeadIn = "An area to consider for growth"
	visualTransition     = "I also want to share a few observations about your body language and stage presence."
)

// Input is everything a narration is rendered from. Only Evaluation is
// required.
type Input struct {
	Evaluation  *types.StructuredEvaluation
	SpeakerName string
	Metrics     *types.DeliveryMetrics
	Visual      *types.VisualObservations
}

var sentenceRe = regexp.MustCompile(`[^.!?]*[.!?]+["')\]]*|[^.!?]+$`)

// Render produces the narration: opening, structure commentary, items,
// visual feedback and closing, separated by blank lines. Empty sections are
// omitted.
func Render(in Input) string {
	eval := in.Evaluation
	if eval == nil {
		return ""
	}

	var sections []string
	if s := opening(eval.Opening, in.SpeakerName); s != "" {
		sections = append(sections, s)
	}
	if s := commentary(eval.StructureCommentary); s != "" {
		sections = append(sections, s)
	}
	for i, it := range eval.Items {
		sections = append(sections, item(i, it, in.Metrics != nil))
	}
	if s := visual(eval.VisualFeedback, in.Visual); s != "" {
		sections = append(sections, s)
	}
	if s := strings.TrimSpace(eval.Closing); s != "" {
		sections = append(sections, s)
	}
	return strings.Join(sections, "\n\n")
}

// opening greets the speaker by name unless the opening already does.
func opening(text, speaker string) string {
	text = strings.TrimSpace(text)
	speaker = strings.TrimSpace(speaker)
	if speaker == "" || strings.Contains(strings.ToLower(text), strings.ToLower(speaker)) {
		return text
	}
	greeting := "Thank you, " + speaker + "."
	if text == "" {
		return greeting
	}
	return greeting + " " + text
}

func commentary(c types.StructureCommentary) string {
	var parts []string
	for _, s := range []*string{c.OpeningComment, c.BodyComment, c.ClosingComment} {
		if s == nil {
			continue
		}
		if t := strings.TrimSpace(*s); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

func item(index int, it types.EvaluationItem, withMetrics bool) string {
	leadIn := commendationLeadIn
	if it.Type == types.Recommendation {
		leadIn = recommendationLeadIn
	}

	var b strings.Builder
	b.WriteString(leadIn)
	b.WriteString(" was this: ")
	b.WriteString(sentence(lowerFirst(it.Summary)))
	fmt.Fprintf(&b, " You said, \"%s\". [[Q:item-%d]]", quote(it.EvidenceQuote), index)

	if expl := strings.TrimSpace(it.Explanation); expl != "" {
		b.WriteByte(' ')
		if withMetrics {
			b.WriteString(annotate(expl))
		} else {
			b.WriteString(expl)
		}
	}
	return b.String()
}

func visual(items []types.VisualFeedbackItem, obs *types.VisualObservations) string {
	if obs == nil {
		return ""
	}
	var parts []string
	for _, it := range items {
		if !evidence.ValidateObservationData(it, obs) {
			continue
		}
		p := sentence(it.Summary)
		if expl := strings.TrimSpace(it.Explanation); expl != "" {
			p += " " + expl
		}
		parts = append(parts, p)
	}
	if len(parts) == 0 {
		return ""
	}
	return visualTransition + " " + strings.Join(parts, " ")
}

// annotate appends metric markers after each sentence of text that
// mentions a delivery metric.
func annotate(text string) string {
	sentences := sentenceRe.FindAllString(text, -1)
	out := make([]string, 0, len(sentences))
	for _, s := range sentences {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		for _, field := range MetricFields(s) {
			s += " [[M:" + field + "]]"
		}
		out = append(out, s)
	}
	return strings.Join(out, " ")
}

// sentence trims s and ensures it ends with terminal punctuation.
func sentence(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	switch s[len(s)-1] {
	case '.', '!', '?':
		return s
	}
	return s + "."
}

// quote trims surrounding whitespace, quotes and trailing punctuation so the
// quote reads naturally inside the narration's own quotation marks.
func quote(q string) string {
	return strings.TrimRight(strings.Trim(strings.TrimSpace(q), `"“”`), ".,;:!? ")
}

func lowerFirst(s string) string {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return s
	}
	// Keep acronyms and proper nouns such as "I" or "TED" intact.
	if s[1] >= 'A' && s[1] <= 'Z' || s[1] == ' ' {
		return s
	}
	if s[0] >= 'A' && s[0] <= 'Z' {
		return string(s[0]+('a'-'A')) + s[1:]
	}
	return s
}
