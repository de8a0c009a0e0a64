package redact

import "github.com/antzucaro/matchr"

// phoneticThreshold is the minimum Jaro-Winkler score for two words whose
// Double Metaphone codes overlap to be considered the same name.
const phoneticThreshold = 0.70

// soundsLike reports whether a and b (both lower-case) are plausibly the
// same spoken name.
func soundsLike(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if !codesOverlap(a, b) {
		return false
	}
	return matchr.JaroWinkler(a, b, false) >= phoneticThreshold
}

func codesOverlap(a, b string) bool {
	ap, as := matchr.DoubleMetaphone(a)
	bp, bs := matchr.DoubleMetaphone(b)
	for _, x := range []string{ap, as} {
		if x == "" {
			continue
		}
		if x == bp || x == bs {
			return true
		}
	}
	return false
}
