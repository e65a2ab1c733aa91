package reference

import (
	"iter"
	"regexp"
)

// candidatePattern matches every token shape. Word boundaries are checked
// separately because RE2 has no lookaround.
var candidatePattern = regexp.MustCompile(`\[\d+\]|r\d+|#\d+|wiki:\w+(?:#\w+)?|changeset:\w+`)

// Extract returns the reference tokens found in text, in order, with
// duplicates preserved. The sequence is lazy and may be ranged over any
// number of times.
//
// A candidate only counts when it is bounded on both sides by the edge of the
// text or a non-word character. A rejected candidate is skipped whole; it is
// not rescanned for shorter tokens embedded in it.
func Extract(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		offset := 0
		for offset < len(text) {
			loc := candidatePattern.FindStringIndex(text[offset:])
			if loc == nil {
				return
			}
			start, end := offset+loc[0], offset+loc[1]
			if bounded(text, start, end) && !yield(text[start:end]) {
				return
			}
			offset = end
		}
	}
}

// ExtractAll collects Extract into a slice.
func ExtractAll(text string) []string {
	var tokens []string
	for token := range Extract(text) {
		tokens = append(tokens, token)
	}
	return tokens
}

func bounded(text string, start, end int) bool {
	if start > 0 && isWordByte(text[start-1]) {
		return false
	}
	if end < len(text) && isWordByte(text[end]) {
		return false
	}
	return true
}

// isWordByte mirrors the ASCII \w class.
func isWordByte(b byte) bool {
	return b == '_' ||
		('0' <= b && b <= '9') ||
		('a' <= b && b <= 'z') ||
		('A' <= b && b <= 'Z')
}
