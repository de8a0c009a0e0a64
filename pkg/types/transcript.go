// Package types defines the shared data model used across all speechcoach
// packages.
//
// These types are the lingua franca between the prompt builder, the evidence
// validator, the orchestrator, the script renderer and the redactor. Inputs
// (transcript, metrics, visual observations, consent) are treated as
// immutable once handed to the engine; outputs are created fresh per request.
package types

// TranscriptWord holds per-word timing and confidence from the transcription
// collaborator. Times are in seconds relative to the start of the recording.
type TranscriptWord struct {
	Word       string  `json:"word"`
	StartTime  float64 `json:"startTime"`
	EndTime    float64 `json:"endTime"`
	Confidence float64 `json:"confidence"`
}

// TranscriptSegment is a single final transcript segment.
type TranscriptSegment struct {
	// Text is the segment text as transcribed.
	Text string `json:"text"`

	// StartTime and EndTime bound the segment, in seconds.
	StartTime float64 `json:"startTime"`
	EndTime   float64 `json:"endTime"`

	// Words contains word-level detail when the transcriber provides it.
	// May be empty, in which case consumers fall back to segment-level timing.
	Words []TranscriptWord `json:"words"`

	// IsFinal is always true for the canonical post-speech transcript.
	IsFinal bool `json:"isFinal"`
}

// TranscriptText joins the text of all segments with single spaces.
func TranscriptText(segments []TranscriptSegment) string {
	n := 0
	for _, s := range segments {
		n += len(s.Text) + 1
	}
	buf := make([]byte, 0, n)
	for i, s := range segments {
		if i > 0 {
			buf = append(buf, ' ')
		}
		buf = append(buf, s.Text...)
	}
	return string(buf)
}
