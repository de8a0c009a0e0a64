package evidence

import (
	"fmt"
	"math"

	"github.com/MrWong99/speechcoach/pkg/types"
)

const (
	// MinQuoteTokens and MaxQuoteTokens bound the normalised quote length.
	MinQuoteTokens = 6
	MaxQuoteTokens = 15

	// TimestampTolerance is the maximum distance, in seconds, between the
	// cited timestamp and the quote's position in the transcript.
	TimestampTolerance = 20.0
)

// Result is the outcome of validating a whole evaluation.
type Result struct {
	Valid  bool     `json:"valid"`
	Issues []string `json:"issues"`
}

// Validate checks every item of eval against the transcript. The evaluation
// is valid iff every item passes; otherwise Issues holds one entry per
// failing item and reason.
func Validate(eval *types.StructuredEvaluation, segments []types.TranscriptSegment) Result {
	if eval == nil {
		return Result{Valid: false, Issues: []string{"evaluation is missing"}}
	}
	tokens := Tokenize(segments)
	issues := []string{}
	for i, it := range eval.Items {
		issues = append(issues, ValidateItem(i, it, tokens)...)
	}
	return Result{Valid: len(issues) == 0, Issues: issues}
}

// ValidateItem checks a single item against pre-tokenised transcript tokens
// and returns its issues; nil means the item is grounded.
func ValidateItem(index int, item types.EvaluationItem, tokens []Token) []string {
	quote := Normalize(item.EvidenceQuote)
	if n := len(quote); n < MinQuoteTokens || n > MaxQuoteTokens {
		return []string{fmt.Sprintf("item %d (%s): evidence quote has %d words, expected %d-%d",
			index, item.Type, n, MinQuoteTokens, MaxQuoteTokens)}
	}

	matched, ok := Locate(tokens, quote, item.EvidenceTimestamp)
	if !ok {
		return []string{fmt.Sprintf("item %d (%s): evidence quote not found in transcript (fabricated): %q",
			index, item.Type, item.EvidenceQuote)}
	}
	if math.Abs(item.EvidenceTimestamp-matched) > TimestampTolerance {
		return []string{fmt.Sprintf("item %d (%s): evidence timestamp mismatch: cited %.1fs, quote found at %.1fs",
			index, item.Type, item.EvidenceTimestamp, matched)}
	}
	return nil
}

// Locate finds the contiguous occurrence of quote nearest to cited and
// returns its time. An occurrence has two valid times: its first word's
// start and the start of the segment that word belongs to, since the
// transcript is shown to the model one segment per line. The one closer to
// cited is returned. ok is false when the quote does not occur at all.
func Locate(tokens []Token, quote []string, cited float64) (matched float64, ok bool) {
	best := math.Inf(1)
	for _, start := range FindRuns(tokens, quote) {
		for _, t := range [2]float64{tokens[start].Time, tokens[start].SegmentStart} {
			if d := math.Abs(t - cited); d < best {
				best, matched, ok = d, t, true
			}
		}
	}
	return matched, ok
}
