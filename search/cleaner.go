package search

import (
	"strings"
	"unicode"
)

// SanitizeText removes control, formatting, and invisible characters that
// commonly leak out of PDF text extraction and render as empty boxes in UI
// fonts (U+FFFD replacement, zero-width spaces, word joiners, BOM). Tab,
// newline, and carriage return survive so paragraph structure is kept.
func SanitizeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if dropRune(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func dropRune(r rune) bool {
	switch {
	case r == '�':
		return true
	case unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t':
		return true
	case r >= 0x200B && r <= 0x200F: // zero-width space/marks
		return true
	case r >= 0x2028 && r <= 0x202F: // line/paragraph separators, embedding marks
		return true
	case r >= 0x2060 && r <= 0x206F: // word joiner and friends
		return true
	case r == '\uFEFF': // BOM / zero-width no-break space
		return true
	}
	return false
}

// NormalizeText collapses whitespace while preserving paragraph breaks.
// Paragraphs are blank-line separated; within a paragraph, lines are joined
// with single spaces, runs of whitespace collapse to one space, and each
// line is trimmed. Empty paragraphs disappear.
func NormalizeText(s string) string {
	// Normalize Windows newlines and stray CRs first so paragraph
	// splitting is consistent.
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	var out strings.Builder
	out.Grow(len(s))
	for _, paragraph := range strings.Split(s, "\n\n") {
		lines := strings.Split(paragraph, "\n")
		for i, line := range lines {
			lines[i] = strings.TrimSpace(line)
		}
		collapsed := collapseSpaces(strings.Join(lines, " "))
		if collapsed == "" {
			continue
		}
		if out.Len() > 0 {
			out.WriteString("\n\n")
		}
		out.WriteString(collapsed)
	}
	return out.String()
}

// collapseSpaces reduces every whitespace run to a single space and trims.
func collapseSpaces(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastSpace {
				b.WriteByte(' ')
			}
			lastSpace = true
			continue
		}
		b.WriteRune(r)
		lastSpace = false
	}
	return strings.TrimSpace(b.String())
}

// CleanContent runs the full pipeline used on every extracted body:
// sanitize first so stripped characters cannot survive inside whitespace
// runs, then normalize.
func CleanContent(s string) string {
	return NormalizeText(SanitizeText(s))
}
