package profanity

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Homoglyph folding maps visually interchangeable runes onto the canonical
// lowercase Latin form the term list is written in. Applied after NFKC, so
// fullwidth and styled letters are already plain.
var homoglyphs = map[rune]rune{
	// Cyrillic look-alikes
	'а': 'a', 'в': 'b', 'е': 'e', 'ё': 'e', 'з': 'z', 'к': 'k', 'м': 'm',
	'н': 'h', 'о': 'o', 'р': 'p', 'с': 'c', 'т': 't', 'у': 'y', 'х': 'x',
	'і': 'i', 'ѕ': 's', 'ј': 'j',
	// Greek look-alikes
	'α': 'a', 'β': 'b', 'ε': 'e', 'η': 'n', 'ι': 'i', 'κ': 'k', 'ν': 'v',
	'ο': 'o', 'ρ': 'p', 'σ': 's', 'ς': 's', 'τ': 't', 'υ': 'u', 'χ': 'x',
	'ω': 'w', 'γ': 'y', 'μ': 'u',
	// Leetspeak digits and symbols
	'0': 'o', '1': 'i', '3': 'e', '4': 'a', '5': 's', '7': 't', '8': 'b',
	'9': 'g', '@': 'a', '$': 's', '!': 'i', '|': 'l', '€': 'e', '+': 't',
}

// isZeroWidth matches ZWSP, ZWNJ, ZWJ, word joiner, BOM and soft hyphen.
func isZeroWidth(r rune) bool {
	switch r {
	case '\u200b', '\u200c', '\u200d', '\u2060', '\ufeff', '\u00ad':
		return true
	}
	return false
}

// fold lowercases, applies NFKC, drops zero-width runes and folds
// homoglyphs. The result is the base form both projections build on.
func fold(s string) string {
	normalized := norm.NFKC.String(s)
	var b strings.Builder
	b.Grow(len(normalized))
	for _, r := range normalized {
		if isZeroWidth(r) {
			continue
		}
		r = unicode.ToLower(r)
		if mapped, ok := homoglyphs[r]; ok {
			r = mapped
		}
		b.WriteRune(r)
	}
	return b.String()
}

// spacedProjection collapses every non-alphanumeric run into one space.
// Phrase patterns match against this form.
func spacedProjection(folded string) string {
	var b strings.Builder
	b.Grow(len(folded))
	space := true
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimRight(b.String(), " ")
}

// compactProjection keeps letters and digits only. Term substring and
// subsequence matching run against this form.
func compactProjection(folded string) []rune {
	out := make([]rune, 0, len(folded))
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			out = append(out, r)
		}
	}
	return out
}

// shortestSubsequenceSpan returns the length of the shortest window of
// haystack containing needle as a subsequence, or 0 when there is none.
func shortestSubsequenceSpan(haystack, needle []rune) int {
	if len(needle) == 0 || len(haystack) < len(needle) {
		return 0
	}
	best := 0
	for start := 0; start <= len(haystack)-len(needle); start++ {
		if haystack[start] != needle[0] {
			continue
		}
		ni := 0
		for i := start; i < len(haystack); i++ {
			if haystack[i] == needle[ni] {
				ni++
				if ni == len(needle) {
					span := i - start + 1
					if best == 0 || span < best {
						best = span
					}
					break
				}
			}
		}
		if best == len(needle) {
			break
		}
	}
	return best
}

// spanCap bounds how stretched a subsequence match may be; shorter terms
// get tighter caps.
func spanCap(termLen int) int {
	switch {
	case termLen <= 4:
		return (termLen*13 + 9) / 10
	case termLen <= 7:
		return (termLen*15 + 9) / 10
	default:
		return (termLen*18 + 9) / 10
	}
}
