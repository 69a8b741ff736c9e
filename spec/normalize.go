package spec

import (
	"strings"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// combiningMarks covers the Combining Diacritical Marks block (U+0300-U+036F).
var combiningMarks = runes.Predicate(func(r rune) bool {
	return r >= 0x0300 && r <= 0x036F
})

// Normalize lowercases s, decomposes it (NFD), drops diacritics and trims
// surrounding whitespace. Every identifier or name comparison in the module
// goes through this function.
func Normalize(s string) string {
	lower := strings.ToLower(s)
	t := transform.Chain(norm.NFD, runes.Remove(combiningMarks))
	out, _, err := transform.String(t, lower)
	if err != nil {
		out = lower
	}
	return strings.TrimSpace(out)
}

// ContainsAny reports whether the normalized haystack contains any of the
// normalized needles.
func ContainsAny(haystack string, needles ...string) bool {
	h := Normalize(haystack)
	for _, n := range needles {
		if strings.Contains(h, Normalize(n)) {
			return true
		}
	}
	return false
}
