package app

import (
	"path/filepath"
	"sort"
	"strings"

	"quietlibrary/config"
	"quietlibrary/library"
	"quietlibrary/search"
)

// filenameMatchScore ranks filename-only matches well below any content
// match.
const filenameMatchScore = 0.05

// scanSearch is the degraded search path used when no index exists: walk the
// watched folders and substring-match extracted content directly. Slower and
// dumber than the index (no query grammar, no ranking beyond content-vs-name)
// but it works on a fresh install before the first rebuild.
func scanSearch(sctx *search.Context, store *library.Store, query string, limit int) ([]search.Result, error) {
	folders, err := store.Folders()
	if err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" || limit <= 0 {
		return nil, nil
	}
	lcQuery := strings.ToLower(query)

	var results []search.Result
	for _, path := range search.EnumerateFiles(folders) {
		if len(results) >= limit {
			break
		}
		if config.IsPDFFile(path) {
			results = append(results, scanPDF(sctx, path, query, lcQuery, limit-len(results))...)
		} else {
			results = append(results, scanTextFile(path, query, lcQuery)...)
		}
	}

	// Content matches above filename matches, then stable by path.
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Path < results[j].Path
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// scanPDF checks a few leading pages via the extraction cache. When the
// extraction fails or nothing matches, a filename match still surfaces the
// document with a token score.
func scanPDF(sctx *search.Context, path, query, lcQuery string, budget int) []search.Result {
	doc, err := sctx.Cache().GetOrExtract(path, config.ScanPageCap)
	if err != nil {
		if nameMatches(path, lcQuery) {
			return []search.Result{filenameResult(path)}
		}
		return nil
	}

	var out []search.Result
	for _, p := range doc.Pages {
		if len(out) >= budget {
			break
		}
		if !strings.Contains(strings.ToLower(p.Body), lcQuery) {
			continue
		}
		n := p.Number
		out = append(out, search.Result{
			Title:   doc.Title,
			Path:    path,
			Page:    &n,
			Section: doc.Which,
			Snippet: search.MakeSnippet(p.Body, query, config.SnippetLength),
			Score:   1.0,
		})
	}
	if len(out) == 0 && nameMatches(path, lcQuery) {
		return []search.Result{filenameResult(path)}
	}
	return out
}

func scanTextFile(path, query, lcQuery string) []search.Result {
	doc, err := search.ExtractFile(path)
	if err != nil {
		if nameMatches(path, lcQuery) {
			return []search.Result{filenameResult(path)}
		}
		return nil
	}

	body := doc.Pages[0].Body
	if strings.Contains(strings.ToLower(body), lcQuery) ||
		strings.Contains(strings.ToLower(doc.Title), lcQuery) {
		return []search.Result{{
			Title:   doc.Title,
			Path:    path,
			Section: doc.Which,
			Snippet: search.MakeSnippet(body, query, config.SnippetLength),
			Score:   1.0,
		}}
	}
	if nameMatches(path, lcQuery) {
		return []search.Result{filenameResult(path)}
	}
	return nil
}

func nameMatches(path, lcQuery string) bool {
	return strings.Contains(strings.ToLower(filepath.Base(path)), lcQuery)
}

func filenameResult(path string) search.Result {
	base := filepath.Base(path)
	return search.Result{
		Title:   strings.TrimSuffix(base, filepath.Ext(base)),
		Path:    path,
		Snippet: base,
		Score:   filenameMatchScore,
	}
}
