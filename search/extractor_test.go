package search

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestExtractFilePlainText(t *testing.T) {
	path := writeTestFile(t, "notes.txt", "First line title\nmore text\n\nsecond paragraph")

	doc, err := ExtractFile(path)
	require.NoError(t, err)

	assert.Equal(t, "First line title", doc.Title)
	assert.Equal(t, ExtractorText, doc.Which)
	require.Len(t, doc.Pages, 1)
	assert.Equal(t, 0, doc.Pages[0].Number)
	assert.Equal(t, "First line title more text\n\nsecond paragraph", doc.Pages[0].Body)
}

func TestExtractFileMarkdown(t *testing.T) {
	path := writeTestFile(t, "readme.md", "# My Document\n\nSome *emphasized* text with a [link](https://example.com).")

	doc, err := ExtractFile(path)
	require.NoError(t, err)

	assert.Equal(t, "My Document", doc.Title)
	body := doc.Pages[0].Body
	assert.Contains(t, body, "emphasized")
	assert.Contains(t, body, "link")
	assert.NotContains(t, body, "example.com")
	assert.NotContains(t, body, "*")
	assert.NotContains(t, body, "#")
}

func TestExtractFileHTML(t *testing.T) {
	html := `<html><head><title>Page Title</title>
<script>var hidden = "secret";</script>
<style>body { color: red; }</style></head>
<body><p>Visible &amp; important text</p></body></html>`
	path := writeTestFile(t, "page.html", html)

	doc, err := ExtractFile(path)
	require.NoError(t, err)

	assert.Equal(t, "Page Title", doc.Title)
	body := doc.Pages[0].Body
	assert.Contains(t, body, "Visible & important text")
	assert.NotContains(t, body, "secret")
	assert.NotContains(t, body, "color: red")
}

func TestExtractFileTitleFallsBackToFilename(t *testing.T) {
	path := writeTestFile(t, "empty.txt", "\n\n  \n")

	doc, err := ExtractFile(path)
	require.NoError(t, err)
	assert.Equal(t, "empty.txt", doc.Title)
}

func TestExtractFileRepairsInvalidUTF8(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.txt")
	require.NoError(t, os.WriteFile(path, []byte{'o', 'k', 0xff, 0xfe, '!', '\n'}, 0o644))

	doc, err := ExtractFile(path)
	require.NoError(t, err)
	assert.Contains(t, doc.Pages[0].Body, "ok")
}

func TestExtractFileMissing(t *testing.T) {
	_, err := ExtractFile(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}
