package config

import (
	"path/filepath"
	"strings"
	"time"
)

// TextTypes defines the file extensions handled by the plain/markup extractor.
var TextTypes = []string{
	"txt", "md", "markdown", "html", "htm",
}

// Extraction and indexing bounds. Text files are read up to MaxTextBytes;
// PDFs are capped per consumer: the extraction cache stores up to
// CachePageCap pages, the index takes the first IndexPageCap of those, and
// the degraded direct-scan path uses the much smaller ScanPageCap.
const (
	MaxTextBytes = 2 * 1024 * 1024

	CachePageCap = 2000
	IndexPageCap = 300
	ScanPageCap  = 50

	SnippetLength = 400
)

// Extraction cache eviction budgets.
const (
	MaxCacheBytes = 300 * 1024 * 1024
	MaxCacheAge   = 30 * 24 * time.Hour
	PruneInterval = 10 * time.Minute
)

// Extraction worker pool bounds. The pool is sized to available hardware
// parallelism, clamped to [MinExtractWorkers, MaxExtractWorkers].
const (
	MinExtractWorkers = 2
	MaxExtractWorkers = 8
)

// IsTextFile checks whether a path has one of the plain/markup extensions.
func IsTextFile(path string) bool {
	ext := normalizedExt(path)
	for _, t := range TextTypes {
		if ext == t {
			return true
		}
	}
	return false
}

// IsPDFFile checks whether a path is a PDF document.
func IsPDFFile(path string) bool {
	return normalizedExt(path) == "pdf"
}

// IsSupportedFile checks whether a path is indexable at all.
func IsSupportedFile(path string) bool {
	return IsTextFile(path) || IsPDFFile(path)
}

func normalizedExt(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

// ShouldSkipDirectory determines if a directory should be skipped during traversal.
func ShouldSkipDirectory(dirName string) bool {
	skipDirs := map[string]bool{
		".git":         true,
		".svn":         true,
		".hg":          true,
		"node_modules": true,
		".vscode":      true,
		".idea":        true,
		"__pycache__":  true,
		"vendor":       true,
		".Trash":       true,
	}

	return skipDirs[dirName] || strings.HasPrefix(dirName, ".")
}
