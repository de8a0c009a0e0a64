package evidence

import (
	"strings"
	"testing"

	"github.com/MrWong99/speechcoach/pkg/types"
)

// segment builds a segment whose words start at start and are spaced 0.5s apart.
func segment(text string, start float64) types.TranscriptSegment {
	seg := types.TranscriptSegment{Text: text, StartTime: start, IsFinal: true}
	t := start
	for _, w := range strings.Fields(text) {
		seg.Words = append(seg.Words, types.TranscriptWord{Word: w, StartTime: t, EndTime: t + 0.4, Confidence: 0.95})
		t += 0.5
	}
	seg.EndTime = t
	return seg
}

var transcript = []types.TranscriptSegment{
	segment("Good evening everyone.", 0),
	segment("Today I want to talk about leadership and growth.", 1.5),
	segment("When I joined my first team, I was terrified of speaking up in meetings.", 30),
	segment("In conclusion, growth begins the moment you stop waiting for permission.", 95),
}

func item(typ types.ItemType, quote string, ts float64) types.EvaluationItem {
	return types.EvaluationItem{Type: typ, Summary: "s", EvidenceQuote: quote, EvidenceTimestamp: ts, Explanation: "e"}
}

func TestNormalize(t *testing.T) {
	t.Parallel()
	got := Normalize(`  "Today, I WANT to -- talk!" `)
	want := []string{"today", "i", "want", "to", "talk"}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("Normalize = %q, want %q", got, want)
	}
}

func TestIsPlaceholder(t *testing.T) {
	t.Parallel()
	tests := map[string]bool{
		"":          true,
		"  ":        true,
		"[silence]": true,
		"<pause>":   true,
		"...":       true,
		"hello":     false,
		"it's":      false,
	}
	for in, want := range tests {
		if got := IsPlaceholder(in); got != want {
			t.Errorf("IsPlaceholder(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestTokenize_SegmentLevelFallback(t *testing.T) {
	t.Parallel()
	segs := []types.TranscriptSegment{
		{Text: "Hello there, friends.", StartTime: 12},
		{Text: "ignored", StartTime: 20, Words: []types.TranscriptWord{
			{Word: "[silence]", StartTime: 20},
			{Word: "Welcome!", StartTime: 21},
		}},
	}
	tokens := Tokenize(segs)
	if len(tokens) != 4 {
		t.Fatalf("len(tokens) = %d, want 4: %+v", len(tokens), tokens)
	}
	for _, tok := range tokens[:3] {
		if tok.Time != 12 || !tok.SegmentLevel {
			t.Errorf("token %+v should carry segment start 12", tok)
		}
	}
	if tokens[3].Text != "welcome" || tokens[3].Time != 21 || tokens[3].SegmentLevel || tokens[3].SegmentStart != 20 {
		t.Errorf("word-level token = %+v", tokens[3])
	}
}

func TestValidateItem(t *testing.T) {
	t.Parallel()
	tokens := Tokenize(transcript)

	tests := []struct {
		name      string
		item      types.EvaluationItem
		wantIssue string
	}{
		{
			name: "grounded quote at true time",
			item: item(types.Commendation, "today I want to talk about leadership and growth", 2),
		},
		{
			name: "punctuation and case ignored",
			item: item(types.Commendation, "Today, I want to talk about LEADERSHIP and growth!", 1),
		},
		{
			name:      "timestamp far from quote",
			item:      item(types.Commendation, "today I want to talk about leadership and growth", 500),
			wantIssue: "timestamp",
		},
		{
			name:      "fabricated quote",
			item:      item(types.Recommendation, "I have always loved public speaking since childhood", 30),
			wantIssue: "fabricated",
		},
		{
			name:      "non-contiguous words",
			item:      item(types.Recommendation, "today I want to talk about growth and leadership", 2),
			wantIssue: "fabricated",
		},
		{
			name:      "too short",
			item:      item(types.Commendation, "good evening everyone", 0),
			wantIssue: "expected 6-15",
		},
		{
			name: "too long",
			item: item(types.Commendation,
				"when I joined my first team I was terrified of speaking up in meetings and today", 30),
			wantIssue: "expected 6-15",
		},
		{
			name: "exactly at tolerance boundary",
			item: item(types.Recommendation, "growth begins the moment you stop waiting for permission", 116),
		},
		{
			name: "spans segment boundary",
			item: item(types.Commendation, "leadership and growth when I joined my first team", 5),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			issues := ValidateItem(0, tt.item, tokens)
			if tt.wantIssue == "" {
				if len(issues) != 0 {
					t.Fatalf("unexpected issues: %v", issues)
				}
				return
			}
			if len(issues) != 1 {
				t.Fatalf("issues = %v, want exactly one", issues)
			}
			if !strings.Contains(issues[0], tt.wantIssue) {
				t.Errorf("issue %q does not mention %q", issues[0], tt.wantIssue)
			}
		})
	}
}

func TestValidateItem_LongWordTimedSegment(t *testing.T) {
	t.Parallel()

	// 42 words one second apart: the quote starts 26s after the line's
	// rendered start time.
	text := "thank you madam toastmaster and fellow members so my friends here is what I have learned after ten years of standing " +
		"on stages like this one the hardest lessons are the ones we learn from failing " +
		"and getting back up again tonight"
	seg := types.TranscriptSegment{Text: text, StartTime: 0, IsFinal: true}
	for i, w := range strings.Fields(text) {
		ts := float64(i)
		seg.Words = append(seg.Words, types.TranscriptWord{Word: w, StartTime: ts, EndTime: ts + 0.8, Confidence: 0.9})
	}
	seg.EndTime = float64(len(seg.Words))
	tokens := Tokenize([]types.TranscriptSegment{seg})

	const quote = "the hardest lessons are the ones we learn from failing"
	tests := []struct {
		name      string
		cited     float64
		wantIssue bool
	}{
		{name: "segment start", cited: 0},
		{name: "word time", cited: 26},
		{name: "near word time", cited: 40},
		{name: "far from both", cited: 90, wantIssue: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			issues := ValidateItem(0, item(types.Commendation, quote, tt.cited), tokens)
			if tt.wantIssue {
				if len(issues) != 1 || !strings.Contains(issues[0], "timestamp") {
					t.Errorf("issues = %v, want one timestamp issue", issues)
				}
				return
			}
			if len(issues) != 0 {
				t.Errorf("unexpected issues: %v", issues)
			}
		})
	}
}

func TestLocate_PrefersNearestOccurrence(t *testing.T) {
	t.Parallel()
	segs := []types.TranscriptSegment{
		segment("we rise by lifting others up together", 10),
		segment("we rise by lifting others up together", 200),
	}
	tokens := Tokenize(segs)
	got, ok := Locate(tokens, Normalize("we rise by lifting others up"), 195)
	if !ok || got != 200 {
		t.Errorf("Locate = (%v, %v), want (200, true)", got, ok)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	eval := &types.StructuredEvaluation{
		Items: []types.EvaluationItem{
			item(types.Commendation, "today I want to talk about leadership and growth", 2),
			item(types.Commendation, "my audience was completely captivated by every word", 40),
			item(types.Recommendation, "I was terrified of speaking up in meetings", 900),
		},
	}
	res := Validate(eval, transcript)
	if res.Valid {
		t.Fatal("expected invalid evaluation")
	}
	if len(res.Issues) != 2 {
		t.Fatalf("issues = %v, want 2", res.Issues)
	}
	if !strings.HasPrefix(res.Issues[0], "item 1") || !strings.HasPrefix(res.Issues[1], "item 2") {
		t.Errorf("issues should reference failing item indexes: %v", res.Issues)
	}

	eval.Items = eval.Items[:1]
	if res := Validate(eval, transcript); !res.Valid || len(res.Issues) != 0 {
		t.Errorf("expected valid result, got %+v", res)
	}
}
