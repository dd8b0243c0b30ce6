package search

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quietlibrary/search/pdf"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCache(t *testing.T) (*ExtractionCache, *int) {
	t.Helper()
	count := 0
	c := NewExtractionCache(t.TempDir(), 0, discardLogger())
	c.upgradeAvailable = func() bool { return false }
	c.extract = func(path string, maxPages int) (*pdf.Result, error) {
		count++
		return &pdf.Result{
			Title: "Doc",
			Pages: []pdf.Page{{Number: 1, Body: "Hello   world"}},
			Which: pdf.ExtractorFallback,
		}, nil
	}
	return c, &count
}

func TestGetOrExtractCachesResult(t *testing.T) {
	c, count := newTestCache(t)
	path := writeTestFile(t, "doc.pdf", "fake pdf bytes")

	doc, err := c.GetOrExtract(path, 50)
	require.NoError(t, err)
	assert.Equal(t, 1, *count)
	assert.Equal(t, "Doc", doc.Title)
	assert.Equal(t, string(pdf.ExtractorFallback), doc.Which)
	require.Len(t, doc.Pages, 1)
	assert.Equal(t, "Hello world", doc.Pages[0].Body)

	again, err := c.GetOrExtract(path, 50)
	require.NoError(t, err)
	assert.Equal(t, 1, *count, "second call must hit the cache")
	assert.Equal(t, doc.Pages, again.Pages)
}

func TestGetOrExtractMissesWhenFileChanges(t *testing.T) {
	c, count := newTestCache(t)
	path := writeTestFile(t, "doc.pdf", "fake pdf bytes")

	_, err := c.GetOrExtract(path, 50)
	require.NoError(t, err)

	fp, err := FingerprintFile(path)
	require.NoError(t, err)
	later := time.Unix(fp.MtimeSecs+60, 0)
	require.NoError(t, os.Chtimes(path, later, later))

	_, err = c.GetOrExtract(path, 50)
	require.NoError(t, err)
	assert.Equal(t, 2, *count)
}

func TestGetOrExtractUpgradesFallbackEntries(t *testing.T) {
	c, count := newTestCache(t)
	path := writeTestFile(t, "doc.pdf", "fake pdf bytes")

	_, err := c.GetOrExtract(path, 50)
	require.NoError(t, err)

	// The primary extractor becomes available and produces better text.
	c.upgradeAvailable = func() bool { return true }
	c.extract = func(path string, maxPages int) (*pdf.Result, error) {
		*count++
		return &pdf.Result{
			Title: "Doc",
			Pages: []pdf.Page{{Number: 1, Body: "Much better text"}},
			Which: pdf.ExtractorPrimary,
		}, nil
	}

	doc, err := c.GetOrExtract(path, 50)
	require.NoError(t, err)
	assert.Equal(t, 2, *count)
	assert.Equal(t, string(pdf.ExtractorPrimary), doc.Which)
	assert.Equal(t, "Much better text", doc.Pages[0].Body)

	// Upgraded entry is now final; no further extraction.
	doc, err = c.GetOrExtract(path, 50)
	require.NoError(t, err)
	assert.Equal(t, 2, *count)
	assert.Equal(t, string(pdf.ExtractorPrimary), doc.Which)
}

func TestGetOrExtractServesStaleOnFailedUpgrade(t *testing.T) {
	c, _ := newTestCache(t)
	path := writeTestFile(t, "doc.pdf", "fake pdf bytes")

	_, err := c.GetOrExtract(path, 50)
	require.NoError(t, err)

	c.upgradeAvailable = func() bool { return true }
	c.extract = func(path string, maxPages int) (*pdf.Result, error) {
		return nil, errors.New("native extractor crashed")
	}

	doc, err := c.GetOrExtract(path, 50)
	require.NoError(t, err)
	assert.Equal(t, string(pdf.ExtractorFallback), doc.Which)
	assert.Equal(t, "Hello world", doc.Pages[0].Body)
}

func TestGetOrExtractPropagatesExtractionError(t *testing.T) {
	c, _ := newTestCache(t)
	c.extract = func(path string, maxPages int) (*pdf.Result, error) {
		return nil, pdf.ErrNoText
	}
	path := writeTestFile(t, "doc.pdf", "fake pdf bytes")

	_, err := c.GetOrExtract(path, 50)
	assert.ErrorIs(t, err, pdf.ErrNoText)
}

func TestGetOrExtractRejectsEmptyCleanedText(t *testing.T) {
	c, _ := newTestCache(t)
	c.extract = func(path string, maxPages int) (*pdf.Result, error) {
		return &pdf.Result{
			Title: "Doc",
			Pages: []pdf.Page{{Number: 1, Body: "​ ​"}},
			Which: pdf.ExtractorFallback,
		}, nil
	}
	path := writeTestFile(t, "doc.pdf", "fake pdf bytes")

	_, err := c.GetOrExtract(path, 50)
	assert.ErrorIs(t, err, pdf.ErrNoText)
}

func TestShouldUpgradePolicy(t *testing.T) {
	c, _ := newTestCache(t)

	c.upgradeAvailable = func() bool { return true }
	assert.True(t, c.shouldUpgrade(string(pdf.ExtractorFallback)))
	assert.False(t, c.shouldUpgrade(string(pdf.ExtractorPrimary)))

	c.upgradeAvailable = func() bool { return false }
	assert.False(t, c.shouldUpgrade(string(pdf.ExtractorFallback)))
}

func TestCacheClear(t *testing.T) {
	c, _ := newTestCache(t)
	path := writeTestFile(t, "doc.pdf", "fake pdf bytes")

	_, err := c.GetOrExtract(path, 50)
	require.NoError(t, err)
	require.NoError(t, c.Clear())

	ents, err := os.ReadDir(c.dir)
	require.NoError(t, err)
	for _, de := range ents {
		assert.False(t, strings.HasPrefix(de.Name(), "pdf_"), "entry %s survived Clear", de.Name())
	}
}

func TestPruneEvictsOldestFirst(t *testing.T) {
	c, _ := newTestCache(t)
	c.maxBytes = 100

	old := filepath.Join(c.dir, "pdf_000000000000000a.json")
	newer := filepath.Join(c.dir, "pdf_000000000000000b.json")
	require.NoError(t, os.MkdirAll(c.dir, 0o755))
	require.NoError(t, os.WriteFile(old, make([]byte, 80), 0o644))
	require.NoError(t, os.WriteFile(newer, make([]byte, 80), 0o644))

	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))

	require.NoError(t, c.prune())

	assert.NoFileExists(t, old)
	assert.FileExists(t, newer)
}

func TestPruneRemovesExpiredEntries(t *testing.T) {
	c, _ := newTestCache(t)

	expired := filepath.Join(c.dir, "pdf_00000000000000aa.json")
	require.NoError(t, os.MkdirAll(c.dir, 0o755))
	require.NoError(t, os.WriteFile(expired, []byte("{}"), 0o644))
	ancient := time.Now().Add(-31 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(expired, ancient, ancient))

	require.NoError(t, c.prune())
	assert.NoFileExists(t, expired)
}

func TestCacheKeyDependsOnPathAndFingerprint(t *testing.T) {
	c, _ := newTestCache(t)
	fp := Fingerprint{MtimeSecs: 100, Size: 42}

	a := c.key("/docs/a.pdf", fp)
	b := c.key("/docs/b.pdf", fp)
	assert.NotEqual(t, a, b)

	changed := c.key("/docs/a.pdf", Fingerprint{MtimeSecs: 101, Size: 42})
	assert.NotEqual(t, a, changed)

	assert.True(t, strings.HasPrefix(a, "pdf_"))
	assert.True(t, strings.HasSuffix(a, ".json"))
}
