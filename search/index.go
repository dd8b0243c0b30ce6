package search

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"

	"quietlibrary/config"
)

// IndexDocument is one index row. PDFs contribute one row per page; plain
// documents contribute a single row with no page number. Section records the
// extractor that produced the text.
type IndexDocument struct {
	Title   string `json:"title"`
	Path    string `json:"path"`
	Page    *int   `json:"page,omitempty"`
	Section string `json:"section"`
	Body    string `json:"body"`
}

// Stats summarizes one rebuild or update run.
type Stats struct {
	Files   int
	Failed  int
	Pages   int
	Deleted int
	Elapsed time.Duration
}

// indexBatchSize is how many rows accumulate before a batch is flushed.
const indexBatchSize = 256

// docID makes the index row ID for a document. Path plus page keeps the IDs
// stable across rebuilds and lets per-page rows of one file coexist.
func docID(doc IndexDocument) string {
	page := 0
	if doc.Page != nil {
		page = *doc.Page
	}
	return fmt.Sprintf("%s#%d", doc.Path, page)
}

// buildIndexMapping declares the schema. Title and body feed the default
// search field; path and section are exact keyword terms so deletion and
// per-file queries match whole values; page is stored for display only.
func buildIndexMapping() mapping.IndexMapping {
	text := bleve.NewTextFieldMapping()
	text.Store = true

	exact := bleve.NewTextFieldMapping()
	exact.Analyzer = keyword.Name
	exact.Store = true
	exact.IncludeInAll = false

	page := bleve.NewNumericFieldMapping()
	page.Store = true
	page.IncludeInAll = false

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("title", text)
	doc.AddFieldMappingsAt("body", text)
	doc.AddFieldMappingsAt("path", exact)
	doc.AddFieldMappingsAt("section", exact)
	doc.AddFieldMappingsAt("page", page)

	im := bleve.NewIndexMapping()
	im.DefaultMapping = doc
	return im
}

// extractForIndex turns one file into its index rows. PDFs go through the
// extraction cache and are capped at the index page limit; plain documents
// become a single row.
func (c *Context) extractForIndex(path string) ([]IndexDocument, error) {
	if config.IsPDFFile(path) {
		doc, err := c.cache.GetOrExtract(path, config.CachePageCap)
		if err != nil {
			return nil, err
		}
		pages := doc.Pages
		if len(pages) > config.IndexPageCap {
			pages = pages[:config.IndexPageCap]
		}
		rows := make([]IndexDocument, 0, len(pages))
		for _, p := range pages {
			n := p.Number
			rows = append(rows, IndexDocument{
				Title:   doc.Title,
				Path:    path,
				Page:    &n,
				Section: doc.Which,
				Body:    p.Body,
			})
		}
		return rows, nil
	}

	doc, err := ExtractFile(path)
	if err != nil {
		return nil, err
	}
	return []IndexDocument{{
		Title:   doc.Title,
		Path:    path,
		Section: doc.Which,
		Body:    doc.Pages[0].Body,
	}}, nil
}

// Rebuild deletes the index and builds it from scratch over the watched
// folders. Extraction failures are logged and counted, never fatal; the
// fingerprint snapshot only records files that made it into the index, so a
// later update retries the failures.
func (c *Context) Rebuild(ctx context.Context, folders []string) (*Stats, error) {
	start := time.Now()
	files := EnumerateFiles(folders)
	current := SnapshotFiles(files)

	c.Invalidate()
	if err := os.RemoveAll(c.IndexDir()); err != nil {
		return nil, fmt.Errorf("remove old index: %w", err)
	}
	idx, err := bleve.New(c.IndexDir(), buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}

	stats := &Stats{}
	snap := Snapshot{}
	batch := idx.NewBatch()
	var indexErr error

	c.extractAll(ctx, files, c.settings.ExtractWorkers, func(res ExtractResult) {
		if indexErr != nil {
			return
		}
		if res.Err != nil {
			stats.Failed++
			c.logger.Warn("extraction failed", "path", res.Path, "error", res.Err)
			return
		}
		for _, doc := range res.Docs {
			if err := batch.Index(docID(doc), doc); err != nil {
				indexErr = err
				return
			}
			stats.Pages++
		}
		stats.Files++
		if fp, ok := current[res.Path]; ok {
			snap[res.Path] = fp
		}
		if batch.Size() >= indexBatchSize {
			indexErr = idx.Batch(batch)
			batch = idx.NewBatch()
		}
	})

	if indexErr == nil && batch.Size() > 0 {
		indexErr = idx.Batch(batch)
	}
	if cerr := idx.Close(); cerr != nil && indexErr == nil {
		indexErr = cerr
	}
	if indexErr != nil {
		return nil, fmt.Errorf("write index: %w", indexErr)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := snap.Save(c.snapshotPath()); err != nil {
		return nil, fmt.Errorf("save snapshot: %w", err)
	}
	stats.Elapsed = time.Since(start)
	return stats, nil
}

// Update applies an incremental pass: fingerprint the watched folders, diff
// against the last snapshot, re-extract the new and changed files, then
// replace their rows and drop rows of deleted files. Existing rows for a
// changed file are only removed once its replacement extraction succeeded, so
// a transient failure cannot empty a file out of the index.
func (c *Context) Update(ctx context.Context, folders []string) (*Stats, error) {
	if !c.HasIndex() {
		return c.Rebuild(ctx, folders)
	}

	start := time.Now()
	files := EnumerateFiles(folders)
	current := SnapshotFiles(files)

	prev, err := LoadSnapshot(c.snapshotPath())
	if err != nil {
		c.logger.Warn("snapshot unreadable, rebuilding", "error", err)
		return c.Rebuild(ctx, folders)
	}

	changed, deleted := prev.Diff(current)
	stats := &Stats{}
	if len(changed) == 0 && len(deleted) == 0 {
		stats.Elapsed = time.Since(start)
		return stats, nil
	}

	// Extract before touching the index.
	type replacement struct {
		path string
		docs []IndexDocument
	}
	var replacements []replacement
	c.extractAll(ctx, changed, c.settings.ExtractWorkers, func(res ExtractResult) {
		if res.Err != nil {
			stats.Failed++
			c.logger.Warn("extraction failed", "path", res.Path, "error", res.Err)
			return
		}
		replacements = append(replacements, replacement{path: res.Path, docs: res.Docs})
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.Invalidate()
	idx, err := bleve.Open(c.IndexDir())
	if err != nil {
		return nil, fmt.Errorf("open index for update: %w", err)
	}

	newSnap := make(Snapshot, len(prev))
	for path, fp := range prev {
		newSnap[path] = fp
	}

	var indexErr error
	for _, path := range deleted {
		if indexErr = deleteDocsForPath(idx, path); indexErr != nil {
			break
		}
		delete(newSnap, path)
		stats.Deleted++
	}

	if indexErr == nil {
		batch := idx.NewBatch()
		for _, rep := range replacements {
			if indexErr = deleteDocsForPath(idx, rep.path); indexErr != nil {
				break
			}
			for _, doc := range rep.docs {
				if indexErr = batch.Index(docID(doc), doc); indexErr != nil {
					break
				}
				stats.Pages++
			}
			if indexErr != nil {
				break
			}
			stats.Files++
			if fp, ok := current[rep.path]; ok {
				newSnap[rep.path] = fp
			}
			if batch.Size() >= indexBatchSize {
				if indexErr = idx.Batch(batch); indexErr != nil {
					break
				}
				batch = idx.NewBatch()
			}
		}
		if indexErr == nil && batch.Size() > 0 {
			indexErr = idx.Batch(batch)
		}
	}

	if cerr := idx.Close(); cerr != nil && indexErr == nil {
		indexErr = cerr
	}
	c.Invalidate()
	if indexErr != nil {
		return nil, fmt.Errorf("update index: %w", indexErr)
	}

	if err := newSnap.Save(c.snapshotPath()); err != nil {
		return nil, fmt.Errorf("save snapshot: %w", err)
	}
	stats.Elapsed = time.Since(start)
	return stats, nil
}

// deleteDocsForPath removes every row of one file via an exact term match on
// the keyword-analyzed path field.
func deleteDocsForPath(idx bleve.Index, path string) error {
	tq := bleve.NewTermQuery(path)
	tq.SetField("path")

	// A file contributes at most the index page cap worth of rows, so a
	// single request covers everything.
	req := bleve.NewSearchRequestOptions(tq, config.IndexPageCap*4, 0, false)
	res, err := idx.Search(req)
	if err != nil {
		return err
	}
	if len(res.Hits) == 0 {
		return nil
	}

	batch := idx.NewBatch()
	for _, hit := range res.Hits {
		batch.Delete(hit.ID)
	}
	return idx.Batch(batch)
}
