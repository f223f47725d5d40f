package spotify

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// trailingGroup matches one parenthesized or bracketed group at the end.
var trailingGroup = regexp.MustCompile(`\s*(\([^()]*\)|\[[^\[\]]*\])\s*$`)

// ShapeTitle trims decorations that make track names too long for the
// banner: trailing "(...)" and "[...]" groups and " - ..." suffixes such as
// "Song B (Remix)" or "Song - 2011 Remaster". Whitespace is collapsed and
// the result is capped at maxRunes runes (see [Truncate]). If stripping
// would leave nothing, the collapsed original is kept.
func ShapeTitle(s string, maxRunes int) string {
	s = collapse(s)
	shaped := s
	for {
		next := shaped
		if i := strings.Index(next, " - "); i > 0 {
			next = next[:i]
		}
		next = strings.TrimSpace(trailingGroup.ReplaceAllString(next, ""))
		if next == shaped || next == "" {
			break
		}
		shaped = next
	}
	return Truncate(shaped, maxRunes)
}

// Truncate collapses whitespace in s and caps it at maxRunes runes, ending
// a shortened string with "...". maxRunes <= 0 disables the cap.
func Truncate(s string, maxRunes int) string {
	s = collapse(s)
	r := []rune(s)
	if maxRunes <= 0 || len(r) <= maxRunes {
		return s
	}
	if maxRunes <= 3 {
		return string(r[:maxRunes])
	}
	return strings.TrimRight(string(r[:maxRunes-3]), " ") + "..."
}

// collapse also NFC-normalizes, since fonts carry precomposed letters.
func collapse(s string) string {
	return norm.NFC.String(strings.Join(strings.Fields(s), " "))
}
