package prompt

import (
	"strings"

	"github.com/MrWong99/speechcoach/pkg/types"
)

// RetryInput describes a single rejected item to be replaced.
type RetryInput struct {
	Transcript []types.TranscriptSegment
	Item       types.EvaluationItem
	Issue      string
}

const retrySystem = `You are an experienced Toastmasters evaluator. One item of your evaluation was rejected because its evidence could not be verified against the transcript. Write a single replacement item of the same type.`

const retrySchema = `## Output
Respond with ONLY a single JSON object in this exact format (no markdown, no prose):
{
  "type": "commendation" | "recommendation",
  "summary": "<short headline>",
  "evidence_quote": "<6-15 words copied verbatim from the transcript>",
  "evidence_timestamp": <start time in seconds of the quoted line>,
  "explanation": "<why this matters and what to keep or change>"
}`

// BuildItemRetry renders the narrow request used to replace one rejected
// item. It carries the evidence rules, the item schema alone, the rejected
// item with the reason it failed, and the transcript.
func BuildItemRetry(in RetryInput) Messages {
	system := strings.Join([]string{retrySystem, evidenceRules, retrySchema}, "\n\n")

	var b strings.Builder
	b.WriteString("## Rejected Item\n")
	b.WriteString(renderJSON(in.Item))
	b.WriteString("\n\n## Reason\n")
	b.WriteString(in.Issue)
	b.WriteString("\n\nReturn a new ")
	b.WriteString(string(in.Item.Type))
	b.WriteString(" whose evidence_quote is copied exactly from the transcript below.\n\n## Transcript\n")
	b.WriteString(RenderTranscript(in.Transcript))

	return Messages{System: system, User: b.String()}
}
