package pdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseStringLiterals(t *testing.T) {
	stream := `BT /F1 12 Tf (Hello) Tj (world) Tj ET`
	got := parseStringLiterals(stream, 1024)
	assert.Equal(t, "Hello world ", got)
}

func TestParseStringLiteralsNewlineOperators(t *testing.T) {
	stream := `(first line) Tj T* (second line) Tj`
	got := parseStringLiterals(stream, 1024)
	assert.Contains(t, got, "first line")
	assert.Contains(t, got, "\n\n")
	assert.Contains(t, got, "second line")
}

func TestParseStringLiteralsEscapes(t *testing.T) {
	got := parseStringLiterals(`(paren \( inside \) here) Tj`, 1024)
	assert.Equal(t, "paren ( inside ) here ", got)

	got = parseStringLiterals(`(line\nbreak) Tj`, 1024)
	assert.Equal(t, "line\nbreak ", got)
}

func TestParseStringLiteralsNestedParens(t *testing.T) {
	got := parseStringLiterals(`(outer (inner) tail) Tj`, 1024)
	assert.Equal(t, "outer (inner) tail ", got)
}

func TestParseStringLiteralsRespectsCap(t *testing.T) {
	got := parseStringLiterals(`(aaaaaaaaaaaaaaaaaaaa) Tj`, 5)
	assert.Len(t, got, 5)
}

func TestPageNumberFromDumpName(t *testing.T) {
	assert.Equal(t, 12, pageNumberFromDumpName("doc_Content_page_12.txt"))
	assert.Equal(t, 3, pageNumberFromDumpName("3.txt"))
	assert.Equal(t, 1, pageNumberFromDumpName("no_digits_here.txt"))
}

func TestTitleFromPath(t *testing.T) {
	assert.Equal(t, "My Book", titleFromPath("/library/My Book.pdf"))
	assert.Equal(t, "notes", titleFromPath("notes.pdf"))
}
