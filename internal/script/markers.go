package script

import (
	"regexp"
	"strings"
)

// metricKeywords maps delivery metric fields to the phrases that refer to
// them. Order is the order markers are emitted in.
var metricKeywords = []struct {
	field   string
	pattern *regexp.Regexp
}{
	{"wordsPerMinute", regexp.MustCompile(`(?i)\b(pace|paced|pacing|speaking rate|speaking speed|words per minute)\b`)},
	{"pauseCount", regexp.MustCompile(`(?i)\b(pause|pauses|paused|pausing)\b`)},
	{"energyVariationCoefficient", regexp.MustCompile(`(?i)\b(vocal variety|energy|energetic|monotone|monotonous)\b`)},
	{"fillerWordCount", regexp.MustCompile(`(?i)\b(filler|fillers|um|ums|uh|uhs)\b`)},
	{"durationSeconds", regexp.MustCompile(`(?i)\b(duration|time limit)\b`)},
}

// MetricFields returns the metric fields referenced by sentence, each at
// most once.
func MetricFields(sentence string) []string {
	var fields []string
	for _, k := range metricKeywords {
		if k.pattern.MatchString(sentence) {
			fields = append(fields, k.field)
		}
	}
	return fields
}

var markerRe = regexp.MustCompile(`\s*\[\[(?:Q|M):[^\]]*\]\]`)

// StripMarkers removes all inline markers, leaving plain narration.
func StripMarkers(s string) string {
	return strings.TrimSpace(markerRe.ReplaceAllString(s, ""))
}
