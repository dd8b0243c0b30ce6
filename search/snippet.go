package search

import (
	"strings"
	"unicode/utf8"
)

// MakeSnippet returns an excerpt of text centered on the first
// case-insensitive occurrence of query, extended maxLen/2 bytes in each
// direction and clamped to rune boundaries so a multi-byte code point is
// never split. When the query does not occur, the head of the text up to
// maxLen is returned.
func MakeSnippet(text, query string, maxLen int) string {
	if text == "" || strings.TrimSpace(query) == "" {
		return ""
	}

	lcText := strings.ToLower(text)
	lcQuery := strings.ToLower(query)

	pos := strings.Index(lcText, lcQuery)
	if pos < 0 || pos > len(text) {
		end := nextRuneBoundary(text, min(maxLen, len(text)))
		return strings.TrimSpace(text[:end])
	}

	start := prevRuneBoundary(text, max(0, pos-maxLen/2))
	end := nextRuneBoundary(text, min(pos+len(lcQuery)+maxLen/2, len(text)))
	if end < start {
		end = start
	}
	return strings.TrimSpace(text[start:end])
}

// MakeSnippets splits text on blank-line paragraph breaks and emits one
// centered snippet for every paragraph containing the query, giving multiple
// per-paragraph excerpts rather than one global one.
func MakeSnippets(text, query string, maxLen int) []string {
	if text == "" || strings.TrimSpace(query) == "" {
		return nil
	}

	lcQuery := strings.ToLower(query)
	var snippets []string
	for _, paragraph := range strings.Split(text, "\n\n") {
		if strings.Contains(strings.ToLower(paragraph), lcQuery) {
			snippets = append(snippets, MakeSnippet(paragraph, query, maxLen))
		}
	}
	return snippets
}

// prevRuneBoundary moves idx left until it sits on the start of a rune.
func prevRuneBoundary(s string, idx int) int {
	if idx > len(s) {
		idx = len(s)
	}
	for idx > 0 && idx < len(s) && !utf8.RuneStart(s[idx]) {
		idx--
	}
	return idx
}

// nextRuneBoundary moves idx right until it sits on the start of a rune or
// the end of the string.
func nextRuneBoundary(s string, idx int) int {
	if idx >= len(s) {
		return len(s)
	}
	for idx < len(s) && !utf8.RuneStart(s[idx]) {
		idx++
	}
	return idx
}
