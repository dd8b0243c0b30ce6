package pdf

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	ltpdf "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// perPageByteCap bounds the text kept for any single page so one pathological
// page cannot dominate memory.
const perPageByteCap = 128 * 1024

// contentDumpPageRegex recovers the page number from the filenames pdfcpu
// writes when dumping content streams (e.g. "doc_Content_page_12.txt").
var contentDumpPageRegex = regexp.MustCompile(`(\d+)\D*$`)

// extractStructural extracts per-page text without native code. It first
// walks the page tree with a structural reader; if that yields nothing (some
// producers emit text objects the reader cannot position), it falls back to
// dumping raw content streams and parsing their string literals.
func extractStructural(path string, maxPages int) ([]Page, error) {
	pages, err := extractPageTree(path, maxPages)
	if err == nil && len(pages) > 0 {
		return pages, nil
	}

	pages, serr := extractContentStreams(path, maxPages)
	if serr != nil {
		if err != nil {
			return nil, fmt.Errorf("structural extraction failed: %w (content streams: %v)", err, serr)
		}
		return nil, serr
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("no text found in %s", path)
	}
	return pages, nil
}

// extractPageTree walks the parsed page tree and concatenates the positioned
// text items of each page. Malformed documents routinely panic inside the
// reader, so every page is processed under its own recover guard.
func extractPageTree(path string, maxPages int) (pages []Page, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader panic on %s: %v", path, r)
		}
	}()

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	reader, err := ltpdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, err
	}

	total := 0
	func() {
		defer func() { _ = recover() }()
		total = reader.NumPage()
	}()
	if total <= 0 {
		return nil, fmt.Errorf("pdf has no readable pages: %s", path)
	}
	if maxPages > 0 && total > maxPages {
		total = maxPages
	}

	for i := 1; i <= total; i++ {
		var body string
		func() {
			defer func() { _ = recover() }()
			page := reader.Page(i)
			if page.V.IsNull() {
				return
			}
			var b strings.Builder
			prevY := -1.0
			for _, item := range page.Content().Text {
				if b.Len() >= perPageByteCap {
					break
				}
				// A jump in the Y coordinate means a new line of
				// positioned text.
				if prevY >= 0 && item.Y != prevY {
					b.WriteByte('\n')
				} else if b.Len() > 0 {
					b.WriteByte(' ')
				}
				prevY = item.Y
				b.WriteString(item.S)
			}
			body = b.String()
		}()
		if strings.TrimSpace(body) == "" {
			continue
		}
		pages = append(pages, Page{Number: i, Body: body})
	}
	return pages, nil
}

// extractContentStreams dumps each page's raw content stream to a temp dir
// and scavenges the string literals of its text-showing operators. Crude, but
// it recovers text from documents the page-tree reader chokes on.
func extractContentStreams(path string, maxPages int) (pages []Page, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("content stream panic on %s: %v", path, r)
		}
	}()

	tmpDir, err := os.MkdirTemp("", "quietlibrary_pdf_*")
	if err != nil {
		return nil, fmt.Errorf("temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	if err := api.ExtractContentFile(path, tmpDir, nil, nil); err != nil {
		return nil, fmt.Errorf("extract content streams: %w", err)
	}

	ents, err := os.ReadDir(tmpDir)
	if err != nil {
		return nil, err
	}
	sort.Slice(ents, func(i, j int) bool { return ents[i].Name() < ents[j].Name() })

	for _, de := range ents {
		if de.IsDir() {
			continue
		}
		number := pageNumberFromDumpName(de.Name())
		if maxPages > 0 && number > maxPages {
			continue
		}
		data, rerr := os.ReadFile(filepath.Join(tmpDir, de.Name()))
		if rerr != nil || len(data) == 0 {
			continue
		}
		body := parseStringLiterals(string(data), perPageByteCap)
		if strings.TrimSpace(body) == "" {
			continue
		}
		pages = append(pages, Page{Number: number, Body: body})
	}

	sort.Slice(pages, func(i, j int) bool { return pages[i].Number < pages[j].Number })
	return pages, nil
}

func pageNumberFromDumpName(name string) int {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	if m := contentDumpPageRegex.FindStringSubmatch(base); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			return n
		}
	}
	return 1
}

// parseStringLiterals collects the text inside balanced parentheses in a PDF
// content stream, honoring backslash escapes. Literals shown by the same
// operator run join with spaces; explicit newline operators (', ", T*) start
// a new paragraph. Output is capped at maxOut bytes.
func parseStringLiterals(s string, maxOut int) string {
	var out strings.Builder
	depth := 0
	escape := false
	in := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !in {
			if c == '(' {
				in = true
				depth = 1
				continue
			}
			// Line-advancing operators outside a literal break the
			// paragraph.
			if c == '\'' || c == '"' || (c == 'T' && i+1 < len(s) && s[i+1] == '*') {
				out.WriteString("\n\n")
			}
			continue
		}
		if escape {
			switch c {
			case 'n':
				out.WriteByte('\n')
			case 't':
				out.WriteByte('\t')
			case 'r':
				// ignore
			default:
				out.WriteByte(c)
			}
			escape = false
			if out.Len() >= maxOut {
				return out.String()
			}
			continue
		}
		switch c {
		case '\\':
			escape = true
		case '(':
			depth++
			out.WriteByte(c)
		case ')':
			depth--
			if depth == 0 {
				in = false
				out.WriteByte(' ')
			} else {
				out.WriteByte(c)
			}
		default:
			out.WriteByte(c)
		}
		if out.Len() >= maxOut {
			return out.String()
		}
	}
	return out.String()
}
