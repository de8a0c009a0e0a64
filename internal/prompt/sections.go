package prompt

import (
	"strings"

	"github.com/MrWong99/speechcoach/internal/evidence"
	"github.com/MrWong99/speechcoach/pkg/types"
)

const (
	// lowWordsPerMinute flags a transcript that likely lost most of the speech.
	lowWordsPerMinute = 30.0

	// lowMeanConfidence flags a transcript the recogniser was unsure about.
	lowMeanConfidence = 0.5

	// highSegmentConfidence is the mean word confidence a segment needs to be
	// listed as a high-confidence segment.
	highSegmentConfidence = 0.7
)

const qualityRules = `## Transcript quality warning
The transcript quality is poor: the recognition confidence or the speaking rate is unusually low.
- Qualify observations with phrases such as "it appeared that" or "from what could be heard".
- Take evidence quotes only from the High-Confidence Segments listed in the user message, when that list is present.
- Never invent or guess content to fill gaps in the transcript.`

const projectRules = `## Project context
The user message lists the speech's project context.
- Reference the project type or objectives in the opening.
- Tie at least one item to a project objective.
- Objectives supplement the evidence. Every item still needs a verbatim quote.`

type qualityAssessment struct {
	warn           bool
	highConfidence []types.TranscriptSegment
}

// assessQuality decides whether the quality warning applies. Placeholder
// tokens such as "[silence]" are excluded from the confidence average.
func assessQuality(segments []types.TranscriptSegment, m types.DeliveryMetrics) qualityAssessment {
	var q qualityAssessment
	if m.DurationSeconds > 0 && m.WordsPerMinute < lowWordsPerMinute {
		q.warn = true
	}

	var sum float64
	var n int
	for _, seg := range segments {
		for _, w := range seg.Words {
			if evidence.IsPlaceholder(w.Word) {
				continue
			}
			sum += w.Confidence
			n++
		}
	}
	if n > 0 && sum/float64(n) < lowMeanConfidence {
		q.warn = true
	}
	if !q.warn {
		return q
	}

	for _, seg := range segments {
		if mean, ok := segmentConfidence(seg); ok && mean >= highSegmentConfidence {
			q.highConfidence = append(q.highConfidence, seg)
		}
	}
	return q
}

func segmentConfidence(seg types.TranscriptSegment) (float64, bool) {
	var sum float64
	var n int
	for _, w := range seg.Words {
		if evidence.IsPlaceholder(w.Word) {
			continue
		}
		sum += w.Confidence
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

func hasProjectContext(cfg *types.EvaluationConfig) bool {
	if cfg == nil {
		return false
	}
	if strings.TrimSpace(cfg.ProjectType) != "" {
		return true
	}
	for _, o := range cfg.Objectives {
		if strings.TrimSpace(o) != "" {
			return true
		}
	}
	return false
}

func renderProjectContext(cfg *types.EvaluationConfig) string {
	var b strings.Builder
	b.WriteString("## Project Context")
	if pt := strings.TrimSpace(cfg.ProjectType); pt != "" {
		b.WriteString("\nProject type: ")
		b.WriteString(pt)
	}
	if title := strings.TrimSpace(cfg.SpeechTitle); title != "" {
		b.WriteString("\nSpeech title: ")
		b.WriteString(title)
	}
	first := true
	for _, o := range cfg.Objectives {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		if first {
			b.WriteString("\nObjectives:")
			first = false
		}
		b.WriteString("\n- ")
		b.WriteString(o)
	}
	return b.String()
}

func visualRules(obs *types.VisualObservations) string {
	var b strings.Builder
	b.WriteString(`## Visual observations
The user message lists aggregate visual observations of the speaker. Only the listed metrics are reliable.
- You may add up to 2 entries to "visual_feedback" about body language, gaze, gestures or movement.
- Each entry's observation_data must cite exactly one listed metric as "metric=<dotted path>; value=<value>; source=visualObservations", using the value exactly as listed.
- Never comment on metrics that are not listed.`)
	if obs.VideoQualityGrade == types.VideoQualityDegraded {
		b.WriteString("\n- The video quality was degraded. Phrase visual feedback with appropriate uncertainty.")
	}
	return b.String()
}

// visibleObservations returns the reliable subset of obs keyed by the
// JSON field names the model must cite.
func visibleObservations(obs *types.VisualObservations) map[string]any {
	out := map[string]any{
		"videoQualityGrade": obs.VideoQualityGrade,
		"framesAnalyzed":    obs.FramesAnalyzed,
	}
	if obs.GazeReliable {
		out["gazeBreakdown"] = obs.GazeBreakdown
		out["faceNotDetectedCount"] = obs.FaceNotDetectedCount
	}
	if obs.GestureReliable {
		out["totalGestureCount"] = obs.TotalGestureCount
		out["gestureFrequency"] = obs.GestureFrequency
		if obs.GesturePerSentenceRatio != nil {
			out["gesturePerSentenceRatio"] = *obs.GesturePerSentenceRatio
		}
	}
	if obs.StabilityReliable {
		out["meanBodyStabilityScore"] = obs.MeanBodyStabilityScore
		out["stageCrossingCount"] = obs.StageCrossingCount
		out["movementClassification"] = obs.MovementClassification
	}
	if obs.FacialEnergyReliable {
		out["meanFacialEnergyScore"] = obs.MeanFacialEnergyScore
		out["facialEnergyVariation"] = obs.FacialEnergyVariation
		out["facialEnergyLowSignal"] = obs.FacialEnergyLowSignal
	}
	return out
}
