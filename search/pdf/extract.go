package pdf

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Extractor names the strategy that produced a result. The name travels
// through the extraction cache and the index, so a document extracted by a
// weaker strategy can be recognized and re-extracted later.
type Extractor string

const (
	// ExtractorPrimary is the native PDFium text API.
	ExtractorPrimary Extractor = "pdfium"
	// ExtractorFallback is the pure-Go structural parser.
	ExtractorFallback Extractor = "structural"
)

// ErrNoText means every extraction strategy ran and none produced text.
var ErrNoText = errors.New("no extractor produced text")

// Page is one page of extracted text. Number is 1-based. Bodies are raw
// extractor output; callers normalize whitespace downstream.
type Page struct {
	Number int
	Body   string
}

// Result is the outcome of extracting one PDF.
type Result struct {
	Title string
	Pages []Page
	Which Extractor
}

type strategy struct {
	which Extractor
	run   func(path string, maxPages int) ([]Page, error)
}

func strategies() []strategy {
	return []strategy{
		{which: ExtractorPrimary, run: extractPrimary},
		{which: ExtractorFallback, run: extractStructural},
	}
}

// ExtractPages runs the strategy chain on a PDF and returns the first
// non-empty result, reading at most maxPages pages (0 means no cap). The
// title is the file's base name without extension; PDF metadata titles are
// unreliable enough that the filename wins.
func ExtractPages(path string, maxPages int) (*Result, error) {
	var errs []string
	for _, s := range strategies() {
		pages, err := s.run(path, maxPages)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", s.which, err))
			continue
		}
		if len(pages) == 0 {
			errs = append(errs, fmt.Sprintf("%s: empty", s.which))
			continue
		}
		return &Result{
			Title: titleFromPath(path),
			Pages: pages,
			Which: s.which,
		}, nil
	}
	return nil, fmt.Errorf("%w for %s (%s)", ErrNoText, path, strings.Join(errs, "; "))
}

func titleFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
