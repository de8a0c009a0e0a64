// Package redact removes third-party personal names from evaluation text
// before it is shown to anyone other than the speaker.
//
// Detection is heuristic. Capitalised word sequences are treated as name
// candidates unless they appear in a curated
// list of non-name words (places, organisations, days, months, nationality
// adjectives and common connectives) or share a token with the speaker's
// own name. Every surviving candidate run is replaced with [Replacement].
// A lone capitalised word at the start of a sentence is not a candidate;
// a sentence-initial run of two or more name words ("Sarah Smith gave")
// is replaced as a whole.
//
// Words such as "McDonald" and "O'Brien" count as single capitalised words.
// All-caps words and names written in lower case are never detected.
//
// The curated list is finite, so both missed names and over-eager
// replacements are possible. Treat the output as best-effort, not as a
// privacy guarantee.
package redact

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/MrWong99/speechcoach/pkg/types"
)

// Replacement is the fixed phrase substituted for every redacted name run.
const Replacement = "a fellow member"

// capitalisedWord is one capitalised word, including an apostrophe prefix
// ("O'Brien") and one inner capital ("McDonald").
const capitalisedWord = `[A-Z](?:['’][A-Z])?[a-z]+(?:[A-Z][a-z]+)?`

var (
	// capitalisedSeq matches runs of capitalised words separated only by
	// whitespace.
	capitalisedSeq = regexp.MustCompile(`\b` + capitalisedWord + `(?:\s+` + capitalisedWord + `)*\b`)
	capitalisedTok = regexp.MustCompile(capitalisedWord)

	// leadIn is what may sit between a sentence terminator and the first
	// word of the next sentence: whitespace, opening quotes or brackets and
	// inline script markers such as "[[Q:item-0]]".
	leadIn = regexp.MustCompile(`(?:\s|["'“‘(]|\[\[[^\]]*\]\])*$`)
)

// Option is a functional option for configuring a [Redactor].
type Option func(*Redactor)

// WithPhoneticSpeakerMatch makes the redactor also keep candidate runs that
// sound like the speaker's name, so transcription variants ("Jon" for
// "John") survive. Disabled by default.
func WithPhoneticSpeakerMatch(enabled bool) Option {
	return func(r *Redactor) {
		r.phonetic = enabled
	}
}

// WithExtraNonNames extends the curated non-name list with club-specific
// words such as venue or district names. Matching is case-insensitive.
func WithExtraNonNames(words ...string) Option {
	return func(r *Redactor) {
		for _, w := range words {
			if w = strings.TrimSpace(w); w != "" {
				r.extra[strings.ToLower(w)] = struct{}{}
			}
		}
	}
}

// Redactor replaces third-party names in free text. It is read-only after
// construction and safe for concurrent use.
type Redactor struct {
	phonetic bool
	extra    map[string]struct{}
}

// New returns a [Redactor] configured with opts.
func New(opts ...Option) *Redactor {
	r := &Redactor{extra: make(map[string]struct{})}
	for _, o := range opts {
		o(r)
	}
	return r
}

// RedactText returns text with every third-party name run replaced by
// [Replacement]. speaker may be empty, in which case no run is protected.
func (r *Redactor) RedactText(text, speaker string) string {
	if text == "" {
		return text
	}
	speakerToks := speakerTokens(speaker)

	var b strings.Builder
	last := 0
	for _, loc := range capitalisedSeq.FindAllStringIndex(text, -1) {
		seqStart, seqEnd := loc[0], loc[1]
		toks := capitalisedTok.FindAllStringIndex(text[seqStart:seqEnd], -1)

		var run [][2]int
		flush := func() {
			if len(run) == 0 {
				return
			}
			start, end := seqStart+run[0][0], seqStart+run[len(run)-1][1]
			if !r.protected(text, seqStart, run, speakerToks) {
				b.WriteString(text[last:start])
				b.WriteString(Replacement)
				last = end
			}
			run = run[:0]
		}

		for i, tok := range toks {
			word := text[seqStart+tok[0] : seqStart+tok[1]]
			if i == 0 && sentenceInitial(text[:seqStart]) && !r.startsNameRun(text[seqStart:seqEnd], toks) {
				continue
			}
			if r.isNonName(word) {
				flush()
				continue
			}
			run = append(run, [2]int{tok[0], tok[1]})
		}
		flush()
	}
	if last == 0 {
		return text
	}
	b.WriteString(text[last:])
	return b.String()
}

// Redact produces the public view of an evaluation and the redacted
// narration script. Structure commentary passes through unchanged and item
// count, order, type and timestamp are preserved exactly.
func (r *Redactor) Redact(in types.RedactionInput) types.RedactionOutput {
	speaker := in.Consent.SpeakerName
	out := types.RedactionOutput{ScriptRedacted: r.RedactText(in.Script, speaker)}
	if in.Evaluation == nil {
		return out
	}

	pub := types.StructuredEvaluationPublic(*in.Evaluation.Clone())
	pub.Opening = r.RedactText(pub.Opening, speaker)
	pub.Closing = r.RedactText(pub.Closing, speaker)
	for i := range pub.Items {
		it := &pub.Items[i]
		it.Summary = r.RedactText(it.Summary, speaker)
		it.Explanation = r.RedactText(it.Explanation, speaker)
		it.EvidenceQuote = r.RedactText(it.EvidenceQuote, speaker)
	}
	for i := range pub.VisualFeedback {
		vf := &pub.VisualFeedback[i]
		vf.Summary = r.RedactText(vf.Summary, speaker)
		vf.Explanation = r.RedactText(vf.Explanation, speaker)
	}
	out.EvaluationPublic = &pub
	return out
}

// startsNameRun reports whether the first two words of a capitalised
// sequence are both name candidates.
func (r *Redactor) startsNameRun(seq string, toks [][]int) bool {
	if len(toks) < 2 {
		return false
	}
	return !r.isNonName(seq[toks[0][0]:toks[0][1]]) && !r.isNonName(seq[toks[1][0]:toks[1][1]])
}

func (r *Redactor) isNonName(word string) bool {
	w := strings.ToLower(word)
	if _, ok := nonNames[w]; ok {
		return true
	}
	_, ok := r.extra[w]
	return ok
}

// protected reports whether a candidate run belongs to the speaker.
func (r *Redactor) protected(text string, seqStart int, run [][2]int, speakerToks []string) bool {
	if len(speakerToks) == 0 {
		return false
	}
	for _, tok := range run {
		word := letterKey(text[seqStart+tok[0] : seqStart+tok[1]])
		for _, s := range speakerToks {
			if word == s {
				return true
			}
			if r.phonetic && soundsLike(word, s) {
				return true
			}
		}
	}
	return false
}

// sentenceInitial reports whether a word following prefix starts a
// sentence: it is at the very beginning of the text or only lead-in
// characters separate it from terminal punctuation.
func sentenceInitial(prefix string) bool {
	trimmed := prefix[:leadIn.FindStringIndex(prefix)[0]]
	if trimmed == "" {
		return true
	}
	last, _ := utf8.DecodeLastRuneInString(trimmed)
	return last == '.' || last == '!' || last == '?'
}

// speakerTokens splits the speaker's name on whitespace and hyphens and
// returns the [letterKey] of each part.
func speakerTokens(name string) []string {
	fields := strings.FieldsFunc(name, func(r rune) bool {
		return unicode.IsSpace(r) || r == '-'
	})
	out := fields[:0]
	for _, f := range fields {
		if k := letterKey(f); k != "" {
			out = append(out, k)
		}
	}
	return out
}

// letterKey lower-cases w and drops everything but letters, so "O'Brien"
// and "obrien" compare equal.
func letterKey(w string) string {
	var b strings.Builder
	for _, r := range w {
		if unicode.IsLetter(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}
