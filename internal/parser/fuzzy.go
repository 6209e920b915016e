package parser

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// FuzzyIndex locates title in text at or after byte offset from, ignoring
// case, punctuation, whitespace and compatibility forms (full-width digits,
// ligatures) on both sides. It returns the byte span of the match in the
// original text.
//
// Both strings are normalized once and searched with strings.Index, so a
// lookup is linear in len(text[from:]).
func FuzzyIndex(text, title string, from int) (start, end int, ok bool) {
	if from < 0 {
		from = 0
	}
	if from >= len(text) {
		return 0, 0, false
	}

	want := normalize(title)
	if want == "" {
		return 0, 0, false
	}

	// starts[i] and ends[i] give the original span of the rune that wrote
	// byte i of folded.
	var folded strings.Builder
	folded.Grow(len(text) - from)
	starts := make([]int, 0, len(text)-from)
	ends := make([]int, 0, len(text)-from)
	for i, r := range text[from:] {
		orig := from + i
		origEnd := orig + utf8.RuneLen(r)
		for _, fr := range fold(r) {
			if !keepRune(fr) {
				continue
			}
			n, _ := folded.WriteRune(unicode.ToLower(fr))
			for k := 0; k < n; k++ {
				starts = append(starts, orig)
				ends = append(ends, origEnd)
			}
		}
	}

	idx := strings.Index(folded.String(), want)
	if idx < 0 {
		return 0, 0, false
	}
	return starts[idx], ends[idx+len(want)-1], true
}

func normalize(s string) string {
	var b strings.Builder
	for _, r := range s {
		for _, fr := range fold(r) {
			if keepRune(fr) {
				b.WriteRune(unicode.ToLower(fr))
			}
		}
	}
	return b.String()
}

// fold applies NFKC to a single rune. Folding rune by rune keeps the text
// and the title in step and lets every output rune map back to one source
// rune.
func fold(r rune) string {
	if r < utf8.RuneSelf {
		return string(r)
	}
	return norm.NFKC.String(string(r))
}

func keepRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
