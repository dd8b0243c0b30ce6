package search

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quietlibrary/config"
	"quietlibrary/search/pdf"
)

func newTestContext(t *testing.T) *Context {
	t.Helper()
	c := NewContext(t.TempDir(), config.DefaultSettings(), discardLogger())
	t.Cleanup(c.Close)
	// No native extractor in tests; PDFs are fed through seeded cache entries.
	c.cache.upgradeAvailable = func() bool { return false }
	c.cache.extract = func(path string, maxPages int) (*pdf.Result, error) {
		return nil, pdf.ErrNoText
	}
	return c
}

// seedPDFEntry plants a cache entry for path as if it had been extracted, so
// index tests can cover the PDF path without a real PDF parser.
func seedPDFEntry(t *testing.T, c *Context, path string, pages []Page) {
	t.Helper()
	fp, err := FingerprintFile(path)
	require.NoError(t, err)
	entry := cacheEntry{
		Title:     titleBase(path),
		Pages:     pages,
		MtimeSecs: fp.MtimeSecs,
		Size:      fp.Size,
		Which:     string(pdf.ExtractorFallback),
	}
	require.NoError(t, writeEntry(filepath.Join(c.CacheDir(), c.cache.key(path, fp)), entry))
}

func titleBase(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}

func writeDoc(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	abs, err := filepath.Abs(path)
	require.NoError(t, err)
	return abs
}

func TestSearchWithoutIndex(t *testing.T) {
	c := newTestContext(t)
	_, err := c.Search("anything", 10)
	assert.ErrorIs(t, err, ErrIndexUnavailable)
}

func TestRebuildAndSearch(t *testing.T) {
	c := newTestContext(t)
	docs := t.TempDir()
	writeDoc(t, docs, "notes.txt", "Greetings\n\nHello world from the notes file.")
	writeDoc(t, docs, "other.md", "# Unrelated\n\nNothing to see.")

	stats, err := c.Rebuild(context.Background(), []string{docs})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Files)
	assert.Equal(t, 2, stats.Pages)
	assert.Zero(t, stats.Failed)

	results, err := c.Search("world", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, "Greetings", r.Title)
	assert.True(t, filepath.Base(r.Path) == "notes.txt")
	assert.Nil(t, r.Page)
	assert.Equal(t, ExtractorText, r.Section)
	assert.Contains(t, r.Snippet, "world")
	assert.Greater(t, r.Score, 0.0)
}

func TestRebuildIndexesPDFPages(t *testing.T) {
	c := newTestContext(t)
	docs := t.TempDir()
	pdfPath := writeDoc(t, docs, "book.pdf", "raw pdf bytes")
	seedPDFEntry(t, c, pdfPath, []Page{
		{Number: 1, Body: "apple orchard on the first page"},
		{Number: 2, Body: "banana plantation\n\napple again here"},
	})

	_, err := c.Rebuild(context.Background(), []string{docs})
	require.NoError(t, err)

	results, err := c.Search("banana", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.NotNil(t, results[0].Page)
	assert.Equal(t, 2, *results[0].Page)
	assert.Equal(t, "book", results[0].Title)
	assert.Equal(t, string(pdf.ExtractorFallback), results[0].Section)

	pages, err := c.SearchPages(pdfPath, "apple", 0)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, pages)
}

func TestSearchEmitsOneRowPerMatchingParagraph(t *testing.T) {
	c := newTestContext(t)
	docs := t.TempDir()
	pdfPath := writeDoc(t, docs, "book.pdf", "raw pdf bytes")
	seedPDFEntry(t, c, pdfPath, []Page{
		{Number: 1, Body: "cider from apples\n\nmore apples later\n\nnothing here"},
	})

	_, err := c.Rebuild(context.Background(), []string{docs})
	require.NoError(t, err)

	results, err := c.Search("apples", 10)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestUpdateAppliesChanges(t *testing.T) {
	c := newTestContext(t)
	docs := t.TempDir()
	aPath := writeDoc(t, docs, "a.txt", "alpha content here")
	writeDoc(t, docs, "b.txt", "beta content here")

	_, err := c.Rebuild(context.Background(), []string{docs})
	require.NoError(t, err)

	// Modify a, delete b, add c.
	require.NoError(t, os.WriteFile(aPath, []byte("gamma content here"), 0o644))
	future := time.Now().Add(10 * time.Second)
	require.NoError(t, os.Chtimes(aPath, future, future))
	require.NoError(t, os.Remove(filepath.Join(docs, "b.txt")))
	writeDoc(t, docs, "c.txt", "delta content here")

	stats, err := c.Update(context.Background(), []string{docs})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Files)
	assert.Equal(t, 1, stats.Deleted)

	for query, want := range map[string]int{
		"alpha": 0,
		"beta":  0,
		"gamma": 1,
		"delta": 1,
	} {
		results, err := c.Search(query, 10)
		require.NoError(t, err)
		assert.Len(t, results, want, "query %q", query)
	}
}

func TestUpdateNoChangesIsNoop(t *testing.T) {
	c := newTestContext(t)
	docs := t.TempDir()
	writeDoc(t, docs, "a.txt", "alpha content here")

	_, err := c.Rebuild(context.Background(), []string{docs})
	require.NoError(t, err)

	stats, err := c.Update(context.Background(), []string{docs})
	require.NoError(t, err)
	assert.Zero(t, stats.Files)
	assert.Zero(t, stats.Deleted)
	assert.Zero(t, stats.Pages)
}

func TestUpdateWithoutIndexRebuilds(t *testing.T) {
	c := newTestContext(t)
	docs := t.TempDir()
	writeDoc(t, docs, "a.txt", "alpha content here")

	stats, err := c.Update(context.Background(), []string{docs})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Files)

	results, err := c.Search("alpha", 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestUpdateKeepsRowsWhenReextractionFails(t *testing.T) {
	c := newTestContext(t)
	docs := t.TempDir()
	pdfPath := writeDoc(t, docs, "book.pdf", "raw pdf bytes")
	seedPDFEntry(t, c, pdfPath, []Page{{Number: 1, Body: "stable apple text"}})

	_, err := c.Rebuild(context.Background(), []string{docs})
	require.NoError(t, err)

	// Touch the file so it looks changed; its new fingerprint has no cache
	// entry and the extractor fails.
	future := time.Now().Add(30 * time.Second)
	require.NoError(t, os.Chtimes(pdfPath, future, future))

	stats, err := c.Update(context.Background(), []string{docs})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)

	// The old rows survive a failed replacement.
	results, err := c.Search("apple", 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)

	// The snapshot kept the old fingerprint, so the file stays flagged for
	// retry on the next update.
	snap, err := LoadSnapshot(c.snapshotPath())
	require.NoError(t, err)
	current := SnapshotFiles([]string{pdfPath})
	changed, _ := snap.Diff(current)
	assert.Equal(t, []string{pdfPath}, changed)
}

func TestRebuildReplacesExistingIndex(t *testing.T) {
	c := newTestContext(t)
	docs := t.TempDir()
	old := writeDoc(t, docs, "old.txt", "ancient words inside")

	_, err := c.Rebuild(context.Background(), []string{docs})
	require.NoError(t, err)

	require.NoError(t, os.Remove(old))
	writeDoc(t, docs, "new.txt", "fresh words inside")

	_, err = c.Rebuild(context.Background(), []string{docs})
	require.NoError(t, err)

	results, err := c.Search("ancient", 10)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = c.Search("fresh", 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}
