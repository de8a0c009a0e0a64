// Package evidence decides whether an evaluation item is grounded in the
// transcript, independently of the service that generated it.
//
// Grounding is purely lexical: the transcript and each evidence quote are
// lower-cased and stripped of punctuation, and the quote must appear as a
// contiguous run of transcript tokens close to the timestamp the item cites.
// Everything in this package is stateless and safe for concurrent use.
package evidence

import (
	"strings"
	"unicode"

	"github.com/MrWong99/speechcoach/pkg/types"
)

// Token is a normalised transcript word with its originating time.
type Token struct {
	// Text is the lower-case, punctuation-free word.
	Text string

	// Time is the word's start time, or the enclosing segment's start when
	// the segment carries no word-level timing.
	Time float64

	// SegmentLevel is true when Time comes from the segment, not the word.
	SegmentLevel bool

	// SegmentStart is the start time of the enclosing segment, the time a
	// transcript line is rendered with.
	SegmentStart float64
}

// Normalize splits s on whitespace, lower-cases every token and removes all
// characters that are neither letters nor digits. Tokens left empty are
// dropped.
func Normalize(s string) []string {
	fields := strings.Fields(s)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if t := normalizeWord(f); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func normalizeWord(w string) string {
	var b strings.Builder
	b.Grow(len(w))
	for _, r := range w {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// IsPlaceholder reports whether a transcript word is a non-speech marker
// rather than something the speaker said: an empty or whitespace-only word,
// a bracketed marker such as "[silence]" or "<pause>", or bare punctuation
// such as "...".
func IsPlaceholder(word string) bool {
	w := strings.TrimSpace(word)
	if w == "" {
		return true
	}
	if (strings.HasPrefix(w, "[") && strings.HasSuffix(w, "]")) ||
		(strings.HasPrefix(w, "<") && strings.HasSuffix(w, ">")) {
		return true
	}
	return normalizeWord(w) == ""
}

// Tokenize flattens segments into timed tokens in transcript order.
// Placeholder words are skipped.
func Tokenize(segments []types.TranscriptSegment) []Token {
	var tokens []Token
	for _, seg := range segments {
		if len(seg.Words) == 0 {
			for _, t := range Normalize(seg.Text) {
				tokens = append(tokens, Token{Text: t, Time: seg.StartTime, SegmentLevel: true, SegmentStart: seg.StartTime})
			}
			continue
		}
		for _, w := range seg.Words {
			if IsPlaceholder(w.Word) {
				continue
			}
			// A single transcriber word may still contain spaces ("New York").
			for _, t := range Normalize(w.Word) {
				tokens = append(tokens, Token{Text: t, Time: w.StartTime, SegmentStart: seg.StartTime})
			}
		}
	}
	return tokens
}

// FindRuns returns the start index of every contiguous run of tokens whose
// texts equal needle, in ascending order.
func FindRuns(tokens []Token, needle []string) []int {
	if len(needle) == 0 || len(needle) > len(tokens) {
		return nil
	}
	var starts []int
outer:
	for i := 0; i+len(needle) <= len(tokens); i++ {
		for j, n := range needle {
			if tokens[i+j].Text != n {
				continue outer
			}
		}
		starts = append(starts, i)
	}
	return starts
}

// ContainsRun reports whether needle occurs contiguously in haystack.
func ContainsRun(haystack, needle []string) bool {
	if len(needle) == 0 {
		return false
	}
outer:
	for i := 0; i+len(needle) <= len(haystack); i++ {
		for j, n := range needle {
			if haystack[i+j] != n {
				continue outer
			}
		}
		return true
	}
	return false
}
