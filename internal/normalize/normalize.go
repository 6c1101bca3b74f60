// Package normalize provides utilities for normalizing upstream text into
// stable sort keys.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var multipleSpaces = regexp.MustCompile(`\s+`)

// SortKey converts display text to a case- and diacritic-insensitive sort
// key, stored alongside the display value at sync time so list sorts stay a
// plain indexed comparison.
// "Éclat Noir" -> "eclat noir". "The  Big One" -> "the big one".
func SortKey(s string) string {
	// Decompose accented characters, then drop the combining marks.
	s = norm.NFKD.String(s)
	s = strings.Map(func(r rune) rune {
		if unicode.Is(unicode.Mn, r) {
			return -1
		}
		return r
	}, s)

	s = strings.ToLower(strings.TrimSpace(s))
	return multipleSpaces.ReplaceAllString(s, " ")
}
