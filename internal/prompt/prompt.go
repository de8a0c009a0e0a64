// Package prompt renders the system and user messages sent to the completion
// service when generating an evaluation.
//
// Rendering is deterministic and free of side effects: the same input always
// yields byte-identical messages. Optional blocks (quality warning, project
// context, visual observations) are appended only when their trigger holds,
// so a request without them renders exactly the baseline prompt.
package prompt

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/MrWong99/speechcoach/pkg/types"
)

// Messages is a rendered system/user message pair.
type Messages struct {
	System string
	User   string
}

// Input is everything a full evaluation prompt is built from. Config and
// Visual are optional.
type Input struct {
	Transcript []types.TranscriptSegment
	Metrics    types.DeliveryMetrics
	Config     *types.EvaluationConfig
	Visual     *types.VisualObservations
}

const systemIntro = `You are an experienced Toastmasters evaluator. You write a spoken evaluation of a speech from its transcript and delivery metrics.`

const itemRules = `## Items
- Give 2 to 3 commendations (type "commendation") and 1 to 2 recommendations (type "recommendation").
- Do NOT follow the Commend-Recommend-Commend sandwich pattern. Vary the order of commendations and recommendations.
- Every item must be grounded in something the speaker actually said.`

const evidenceRules = `## Evidence
- evidence_quote must be copied VERBATIM from the transcript: 6 to 15 consecutive words, no paraphrasing, no ellipses, no words skipped or added.
- evidence_timestamp is the start time, in seconds, of the transcript line the quote comes from.
- Never invent a quote. If you cannot find a fitting quote, choose a different observation.`

const structureRules = `## Structure commentary
- Comment on the speech's opening, body and closing.
- Locate them by share of the speech duration: the opening is roughly the first 10-15%, the body roughly the middle 70-80%, the closing roughly the last 10-15%.
- For transcripts under about 120 words, use lexical cues instead, such as "in conclusion", "to wrap up" or "finally" for the closing.
- If a part cannot be identified with confidence, return null for that comment instead of speculating.
- Never include numeric scores, ratings or grades in structure commentary.`

// Build renders the full evaluation prompt for in.
func Build(in Input) Messages {
	quality := assessQuality(in.Transcript, in.Metrics)
	project := hasProjectContext(in.Config)
	visual := in.Visual.Usable()

	sections := []string{systemIntro, itemRules, evidenceRules, structureRules}
	if quality.warn {
		sections = append(sections, qualityRules)
	}
	if project {
		sections = append(sections, projectRules)
	}
	if visual {
		sections = append(sections, visualRules(in.Visual))
	}
	sections = append(sections, outputSchema(visual))
	system := strings.Join(sections, "\n\n")

	blocks := []string{
		"## Transcript\n" + RenderTranscript(in.Transcript),
		"## Delivery Metrics\n" + renderJSON(in.Metrics),
	}
	if quality.warn && len(quality.highConfidence) > 0 {
		blocks = append(blocks, "## High-Confidence Segments\n"+RenderTranscript(quality.highConfidence))
	}
	if project {
		blocks = append(blocks, renderProjectContext(in.Config))
	}
	if visual {
		blocks = append(blocks, "## Visual Observations\n"+renderJSON(visibleObservations(in.Visual)))
	}
	user := strings.Join(blocks, "\n\n")

	return Messages{System: system, User: user}
}

// RenderTranscript renders one "[<start>s] <text>" line per segment.
func RenderTranscript(segments []types.TranscriptSegment) string {
	var b strings.Builder
	for i, seg := range segments {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteByte('[')
		b.WriteString(formatSeconds(seg.StartTime))
		b.WriteString("s] ")
		b.WriteString(strings.TrimSpace(seg.Text))
	}
	return b.String()
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 1, 64)
}

// renderJSON renders v as two-space indented JSON. Map keys are sorted by
// encoding/json, which keeps the output deterministic.
func renderJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

func outputSchema(withVisual bool) string {
	var b strings.Builder
	b.WriteString(`## Output
Respond with ONLY a single JSON object in this exact format (no markdown, no prose):
{
  "opening": "<one or two sentences addressing the speaker>",
  "items": [
    {
      "type": "commendation" | "recommendation",
      "summary": "<short headline>",
      "evidence_quote": "<6-15 words copied verbatim from the transcript>",
      "evidence_timestamp": <start time in seconds of the quoted line>,
      "explanation": "<why this matters and what to keep or change>"
    }
  ],
  "closing": "<one or two encouraging sentences>",
  "structure_commentary": {
    "opening_comment": "<string or null>",
    "body_comment": "<string or null>",
    "closing_comment": "<string or null>"
  }`)
	if withVisual {
		b.WriteString(`,
  "visual_feedback": [
    {
      "type": "visual_observation",
      "summary": "<short headline>",
      "observation_data": "metric=<dotted metric path>; value=<value exactly as listed>; source=visualObservations",
      "explanation": "<what the observation means for the speaker>"
    }
  ]`)
	}
	b.WriteString("\n}")
	return b.String()
}
