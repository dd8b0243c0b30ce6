package search

import (
	"sort"
	"strings"

	"github.com/blevesearch/bleve/v2"

	"quietlibrary/config"
)

// Result is one search hit row: a snippet from one page (or one paragraph of
// a page) of a matching document. Page is nil for non-paginated documents.
type Result struct {
	Title   string
	Path    string
	Page    *int
	Section string
	Snippet string
	Score   float64
}

// Search runs a query against the index and returns up to limit snippet rows.
// The query uses the standard query-string grammar (bare terms, quoted
// phrases, +/- modifiers) matched against titles and bodies. A page matching
// in several paragraphs yields one row per matching paragraph.
func (c *Context) Search(query string, limit int) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = c.settings.SearchLimit
	}

	var out []Result
	err := c.withIndex(func(idx bleve.Index) error {
		q := bleve.NewQueryStringQuery(query)
		req := bleve.NewSearchRequestOptions(q, limit, 0, false)
		req.Fields = []string{"title", "path", "page", "section", "body"}

		res, err := idx.Search(req)
		if err != nil {
			return err
		}

		for _, hit := range res.Hits {
			body, _ := hit.Fields["body"].(string)
			row := Result{
				Title:   stringField(hit.Fields, "title"),
				Path:    stringField(hit.Fields, "path"),
				Section: stringField(hit.Fields, "section"),
				Score:   hit.Score,
			}
			if f, ok := hit.Fields["page"].(float64); ok {
				p := int(f)
				row.Page = &p
			}

			term := snippetTerm(query)
			snippets := MakeSnippets(body, term, config.SnippetLength)
			if len(snippets) == 0 {
				if first, _, multi := strings.Cut(term, " "); multi {
					snippets = MakeSnippets(body, first, config.SnippetLength)
				}
			}
			if len(snippets) == 0 {
				// Query grammar can match without a literal occurrence
				// (stemming, fuzziness, title-only hits). Show the head.
				snippets = []string{MakeSnippet(body, term, config.SnippetLength)}
			}
			for _, sn := range snippets {
				row.Snippet = sn
				out = append(out, row)
				if len(out) >= limit {
					return nil
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SearchPages returns the distinct page numbers of one document that match
// the query, ascending. Used to jump between hits inside an open document.
func (c *Context) SearchPages(path, query string, limit int) ([]int, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = config.IndexPageCap
	}

	var pages []int
	err := c.withIndex(func(idx bleve.Index) error {
		tq := bleve.NewTermQuery(path)
		tq.SetField("path")
		mq := bleve.NewMatchQuery(query)
		mq.SetField("body")
		conj := bleve.NewConjunctionQuery(tq, mq)

		req := bleve.NewSearchRequestOptions(conj, config.IndexPageCap*4, 0, false)
		req.Fields = []string{"page"}

		res, err := idx.Search(req)
		if err != nil {
			return err
		}

		seen := make(map[int]struct{})
		for _, hit := range res.Hits {
			f, ok := hit.Fields["page"].(float64)
			if !ok {
				continue
			}
			n := int(f)
			if _, dup := seen[n]; dup {
				continue
			}
			seen[n] = struct{}{}
			pages = append(pages, n)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Ints(pages)
	if len(pages) > limit {
		pages = pages[:limit]
	}
	return pages, nil
}

// snippetTerm strips query-string syntax down to the text used for centering
// snippets: quotes and +/- prefixes go, field prefixes keep only the value.
func snippetTerm(query string) string {
	fields := strings.Fields(query)
	var kept []string
	for _, f := range fields {
		f = strings.TrimLeft(f, "+-")
		if i := strings.Index(f, ":"); i >= 0 {
			f = f[i+1:]
		}
		f = strings.Trim(f, `"`)
		if f != "" {
			kept = append(kept, f)
		}
	}
	return strings.Join(kept, " ")
}

func stringField(fields map[string]interface{}, name string) string {
	s, _ := fields[name].(string)
	return s
}
