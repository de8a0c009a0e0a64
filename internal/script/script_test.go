package script_test

import (
	"strings"
	"testing"

	"github.com/MrWong99/speechcoach/internal/script"
	"github.com/MrWong99/speechcoach/pkg/types"
)

func ptr(s string) *string { return &s }

func evaluation() *types.StructuredEvaluation {
	return &types.StructuredEvaluation{
		Opening: "What a thoughtful speech about growth.",
		Items: []types.EvaluationItem{
			{
				Type:              types.Commendation,
				Summary:           "Strong opening line",
				EvidenceQuote:     "today I want to talk about leadership and growth.",
				EvidenceTimestamp: 2,
				Explanation:       "It told us exactly where you were headed.",
			},
			{
				Type:              types.Recommendation,
				Summary:           "Slow down in the story",
				EvidenceQuote:     "I was terrified of speaking up in meetings",
				EvidenceTimestamp: 33,
				Explanation:       "Your pace picked up here and a pause, or a longer pause, would help. Watch the um and uh fillers too.",
			},
		},
		Closing: "Keep growing, and I look forward to your next speech.",
	}
}

func TestRender_SectionOrder(t *testing.T) {
	t.Parallel()

	eval := evaluation()
	eval.StructureCommentary = types.StructureCommentary{
		OpeningComment: ptr("Your opening hooked us."),
		ClosingComment: ptr("The ending tied back to the start."),
	}
	got := script.Render(script.Input{Evaluation: eval, SpeakerName: "Dana"})

	paras := strings.Split(got, "\n\n")
	if len(paras) != 5 {
		t.Fatalf("got %d paragraphs, want 5:\n%s", len(paras), got)
	}
	if paras[0] != "Thank you, Dana. What a thoughtful speech about growth." {
		t.Errorf("opening = %q", paras[0])
	}
	if paras[1] != "Your opening hooked us. The ending tied back to the start." {
		t.Errorf("commentary = %q", paras[1])
	}
	if !strings.Contains(paras[2], "really stood out") {
		t.Errorf("commendation lead-in missing: %q", paras[2])
	}
	if !strings.Contains(paras[3], "area to consider for growth") {
		t.Errorf("recommendation lead-in missing: %q", paras[3])
	}
	if paras[4] != eval.Closing {
		t.Errorf("closing = %q", paras[4])
	}
}

func TestRender_GreetingNotDuplicated(t *testing.T) {
	t.Parallel()

	eval := evaluation()
	eval.Opening = "Thank you, Dana, for a thoughtful speech."
	got := script.Render(script.Input{Evaluation: eval, SpeakerName: "Dana"})
	if !strings.HasPrefix(got, "Thank you, Dana, for a thoughtful speech.\n\n") {
		t.Errorf("opening should be unchanged when it names the speaker:\n%s", got)
	}
}

func TestRender_CommentaryOmission(t *testing.T) {
	t.Parallel()

	eval := evaluation()
	got := script.Render(script.Input{Evaluation: eval})
	paras := strings.Split(got, "\n\n")
	if paras[0] != eval.Opening {
		t.Errorf("opening = %q", paras[0])
	}
	if !strings.HasPrefix(paras[1], "Something that really stood out") {
		t.Errorf("first item should directly follow the opening, got %q", paras[1])
	}

	body := "The body flowed well."
	eval.StructureCommentary = types.StructureCommentary{BodyComment: &body}
	got = script.Render(script.Input{Evaluation: eval})
	if !strings.Contains(got, eval.Opening+"\n\n"+body+"\n\n") {
		t.Errorf("body comment should form its own paragraph:\n%s", got)
	}
	if strings.Contains(got, "<nil>") || strings.Contains(got, "null") {
		t.Errorf("nil comments leaked into script:\n%s", got)
	}
}

func TestRender_QuoteMarkers(t *testing.T) {
	t.Parallel()

	got := script.Render(script.Input{Evaluation: evaluation()})
	for _, want := range []string{
		`You said, "today I want to talk about leadership and growth". [[Q:item-0]]`,
		`You said, "I was terrified of speaking up in meetings". [[Q:item-1]]`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in:\n%s", want, got)
		}
	}
	if strings.Contains(got, "[[M:") {
		t.Errorf("metric markers require metrics:\n%s", got)
	}
}

func TestRender_MetricMarkers(t *testing.T) {
	t.Parallel()

	got := script.Render(script.Input{Evaluation: evaluation(), Metrics: &types.DeliveryMetrics{WordsPerMinute: 160}})

	want := "Your pace picked up here and a pause, or a longer pause, would help. [[M:wordsPerMinute]] [[M:pauseCount]] " +
		"Watch the um and uh fillers too. [[M:fillerWordCount]]"
	if !strings.Contains(got, want) {
		t.Errorf("missing %q in:\n%s", want, got)
	}
	if n := strings.Count(got, "[[M:pauseCount]]"); n != 1 {
		t.Errorf("pauseCount marker appears %d times, want 1", n)
	}
	if strings.Contains(got, "exactly where you were headed. [[M:") {
		t.Error("sentence without metric keywords should carry no marker")
	}
}

func TestMetricFields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		sentence string
		want     string
	}{
		{"Your speaking rate was steady.", "wordsPerMinute"},
		{"More vocal variety would lift the story.", "energyVariationCoefficient"},
		{"You sounded a little monotone.", "energyVariationCoefficient"},
		{"You finished within the time limit.", "durationSeconds"},
		{"Pausing before the punchline worked.", "pauseCount"},
		{"Your umbrella story was funny.", ""},
		{"Energy and pace both rose.", "wordsPerMinute,energyVariationCoefficient"},
	}
	for _, tt := range tests {
		if got := strings.Join(script.MetricFields(tt.sentence), ","); got != tt.want {
			t.Errorf("MetricFields(%q) = %q, want %q", tt.sentence, got, tt.want)
		}
	}
}

func TestRender_VisualSection(t *testing.T) {
	t.Parallel()

	obs := &types.VisualObservations{
		GazeBreakdown:     types.GazeBreakdown{AudienceFacing: 65.5},
		TotalGestureCount: 12,
		VideoQualityGrade: types.VideoQualityGood,
		GazeReliable:      true,
	}
	good := types.VisualFeedbackItem{
		Type:            types.VisualObservationType,
		Summary:         "You kept your eyes on the audience",
		ObservationData: "metric=gazeBreakdown.audienceFacing; value=65.5; source=visualObservations",
		Explanation:     "That built connection.",
	}
	bad := types.VisualFeedbackItem{
		Type:            types.VisualObservationType,
		Summary:         "You gestured constantly",
		ObservationData: "metric=totalGestureCount; value=90; source=visualObservations",
		Explanation:     "Made up.",
	}

	eval := evaluation()
	eval.VisualFeedback = []types.VisualFeedbackItem{bad, good}

	got := script.Render(script.Input{Evaluation: eval, Visual: obs})
	want := "I also want to share a few observations about your body language and stage presence. " +
		"You kept your eyes on the audience. That built connection."
	if !strings.Contains(got, want+"\n\n"+eval.Closing) {
		t.Errorf("visual section missing or misplaced:\n%s", got)
	}
	if strings.Contains(got, "gestured constantly") {
		t.Error("unverifiable visual item rendered")
	}

	eval.VisualFeedback = []types.VisualFeedbackItem{bad}
	if got := script.Render(script.Input{Evaluation: eval, Visual: obs}); strings.Contains(got, "body language") {
		t.Errorf("section with no verifiable item should be omitted:\n%s", got)
	}

	eval.VisualFeedback = []types.VisualFeedbackItem{good}
	if got := script.Render(script.Input{Evaluation: eval}); strings.Contains(got, "body language") {
		t.Errorf("section should be omitted without observations:\n%s", got)
	}
}

func TestStripMarkers(t *testing.T) {
	t.Parallel()

	got := script.StripMarkers(`You said, "hi there". [[Q:item-0]] Your pace was good. [[M:wordsPerMinute]]`)
	if got != `You said, "hi there". Your pace was good.` {
		t.Errorf("StripMarkers = %q", got)
	}
}

func TestRender_NilEvaluation(t *testing.T) {
	t.Parallel()

	if got := script.Render(script.Input{}); got != "" {
		t.Errorf("Render(nil) = %q, want empty", got)
	}
}
