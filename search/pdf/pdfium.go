package pdf

import (
	"fmt"
	"strings"
	"sync"
	"unicode/utf16"

	"github.com/ebitengine/purego"
)

// PDFium is not thread-safe: all FPDF_* calls are serialized through this
// mutex, so concurrent extraction workers take turns on the native library.
var pdfiumMu sync.Mutex

var (
	fpdfInitLibrary    func()
	fpdfLoadDocument   func(path string, password string) uintptr
	fpdfCloseDocument  func(doc uintptr)
	fpdfGetPageCount   func(doc uintptr) int32
	fpdfLoadPage       func(doc uintptr, index int32) uintptr
	fpdfClosePage      func(page uintptr)
	fpdfTextLoadPage   func(page uintptr) uintptr
	fpdfTextClosePage  func(textPage uintptr)
	fpdfTextCountChars func(textPage uintptr) int32
	fpdfTextGetText    func(textPage uintptr, start, count int32, buf *uint16) int32
)

func registerFunctions() {
	purego.RegisterLibFunc(&fpdfInitLibrary, libHandle, "FPDF_InitLibrary")
	purego.RegisterLibFunc(&fpdfLoadDocument, libHandle, "FPDF_LoadDocument")
	purego.RegisterLibFunc(&fpdfCloseDocument, libHandle, "FPDF_CloseDocument")
	purego.RegisterLibFunc(&fpdfGetPageCount, libHandle, "FPDF_GetPageCount")
	purego.RegisterLibFunc(&fpdfLoadPage, libHandle, "FPDF_LoadPage")
	purego.RegisterLibFunc(&fpdfClosePage, libHandle, "FPDF_ClosePage")
	purego.RegisterLibFunc(&fpdfTextLoadPage, libHandle, "FPDFText_LoadPage")
	purego.RegisterLibFunc(&fpdfTextClosePage, libHandle, "FPDFText_ClosePage")
	purego.RegisterLibFunc(&fpdfTextCountChars, libHandle, "FPDFText_CountChars")
	purego.RegisterLibFunc(&fpdfTextGetText, libHandle, "FPDFText_GetText")
}

// extractPrimary pulls per-page text through PDFium's text API. Pages with no
// extractable text are skipped; at most maxPages pages are read.
func extractPrimary(path string, maxPages int) ([]Page, error) {
	if err := Initialize(); err != nil {
		return nil, err
	}

	pdfiumMu.Lock()
	defer pdfiumMu.Unlock()

	doc := fpdfLoadDocument(path, "")
	if doc == 0 {
		return nil, fmt.Errorf("pdfium could not open %s", path)
	}
	defer fpdfCloseDocument(doc)

	count := int(fpdfGetPageCount(doc))
	if maxPages > 0 && count > maxPages {
		count = maxPages
	}

	var pages []Page
	for i := 0; i < count; i++ {
		body := extractPageText(doc, i)
		if strings.TrimSpace(body) == "" {
			continue
		}
		pages = append(pages, Page{Number: i + 1, Body: body})
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("pdfium found no text in %s", path)
	}
	return pages, nil
}

func extractPageText(doc uintptr, index int) string {
	page := fpdfLoadPage(doc, int32(index))
	if page == 0 {
		return ""
	}
	defer fpdfClosePage(page)

	textPage := fpdfTextLoadPage(page)
	if textPage == 0 {
		return ""
	}
	defer fpdfTextClosePage(textPage)

	count := fpdfTextCountChars(textPage)
	if count <= 0 {
		return ""
	}

	// GetText writes UTF-16LE plus a NUL terminator and returns the number
	// of units written including the terminator.
	buf := make([]uint16, count+1)
	written := fpdfTextGetText(textPage, 0, count, &buf[0])
	if written <= 1 {
		return ""
	}
	return string(utf16.Decode(buf[:written-1]))
}
