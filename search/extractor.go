package search

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"

	"quietlibrary/config"
)

// Page is one unit of extracted body text. Number is 1-based for PDF pages
// and 0 for documents modeled as a single implicit page.
type Page struct {
	Number int    `json:"number"`
	Body   string `json:"body"`
}

// ExtractedDocument is the normalized output of text extraction for one
// file. Pages are ordered by page number ascending; bodies have been through
// CleanContent (whitespace collapsed, paragraph breaks preserved, invisible
// characters stripped).
type ExtractedDocument struct {
	Title string
	Path  string
	Pages []Page
	Which string // name of the extractor that produced the text
}

// ExtractorText identifies the plain/markup extractor in cache entries and
// index rows.
const ExtractorText = "text"

var (
	htmlTagRegex    = regexp.MustCompile(`<[^>]*>`)
	htmlTitleRegex  = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	htmlScriptRegex = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	htmlStyleRegex  = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
)

// ExtractFile produces (title, text) for a plain/markup document. The file
// is read up to a fixed byte cap and decoded as UTF-8 with lossy fallback;
// markup is reduced to its textual content. PDF files are handled elsewhere.
func ExtractFile(path string) (*ExtractedDocument, error) {
	raw, err := readPrefix(path, config.MaxTextBytes)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	name := filepath.Base(path)
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))

	var title, text string
	switch ext {
	case "html", "htm":
		title = htmlTitle(raw, name)
		text = htmlToText(raw)
	case "md", "markdown":
		title = markdownTitle(raw, name)
		text = stripMarkdown(raw)
	default:
		title = firstNonEmptyLine(raw, name)
		text = raw
	}

	return &ExtractedDocument{
		Title: title,
		Path:  path,
		Pages: []Page{{Number: 0, Body: CleanContent(text)}},
		Which: ExtractorText,
	}, nil
}

// readPrefix reads at most maxBytes from the file and lossily repairs any
// ill-formed UTF-8 so downstream code always sees valid text.
func readPrefix(path string, maxBytes int) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	buf, err := io.ReadAll(io.LimitReader(f, int64(maxBytes)))
	if err != nil {
		return "", err
	}

	s, _, err := transform.String(runes.ReplaceIllFormed(), string(buf))
	if err != nil {
		return string(buf), nil
	}
	return s, nil
}

// htmlToText reduces HTML to its textual content: script/style blocks go
// first, then tags become spaces and the common entities are decoded.
func htmlToText(html string) string {
	text := htmlScriptRegex.ReplaceAllString(html, " ")
	text = htmlStyleRegex.ReplaceAllString(text, " ")
	text = htmlTagRegex.ReplaceAllString(text, " ")
	return decodeEntities(text)
}

func decodeEntities(s string) string {
	replacer := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", "\"",
		"&apos;", "'",
		"&nbsp;", " ",
	)
	return replacer.Replace(s)
}

func htmlTitle(html, fallback string) string {
	if m := htmlTitleRegex.FindStringSubmatch(html); m != nil {
		if t := collapseSpaces(m[1]); t != "" {
			return t
		}
	}
	return fallback
}

func markdownTitle(md, fallback string) string {
	for _, line := range strings.Split(md, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			if t := strings.TrimSpace(strings.TrimLeft(line, "#")); t != "" {
				return t
			}
		}
	}
	return firstNonEmptyLine(md, fallback)
}

func firstNonEmptyLine(s, fallback string) string {
	for _, line := range strings.Split(s, "\n") {
		if t := strings.TrimSpace(line); t != "" {
			return t
		}
	}
	return fallback
}

// stripMarkdown reduces Markdown to its textual content: headings lose their
// hashes, emphasis markers disappear, links keep only their text, and inline
// code passes through verbatim.
func stripMarkdown(md string) string {
	var out strings.Builder
	out.Grow(len(md))

	rs := []rune(md)
	inCode := false
	for i := 0; i < len(rs); i++ {
		r := rs[i]
		if r == '`' {
			inCode = !inCode
			continue
		}
		if inCode {
			out.WriteRune(r)
			continue
		}
		switch r {
		case '[':
			// [text](url) keeps text, drops the target
			for i++; i < len(rs) && rs[i] != ']'; i++ {
				out.WriteRune(rs[i])
			}
			if j := i + 1; j < len(rs) && rs[j] == '(' {
				for i = j; i < len(rs) && rs[i] != ')'; i++ {
				}
			}
		case '#':
			// heading marker at line start; hashes elsewhere are content
			if i == 0 || rs[i-1] == '\n' {
				for i < len(rs) && (rs[i] == '#' || rs[i] == ' ') {
					i++
				}
				i--
			} else {
				out.WriteRune(r)
			}
		case '*', '_':
			// emphasis markers
		default:
			out.WriteRune(r)
		}
	}
	return out.String()
}
