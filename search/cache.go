package search

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"quietlibrary/config"
	"quietlibrary/search/pdf"
)

// ExtractionCache memoizes PDF extraction results on disk, keyed by the
// file's path and fingerprint. PDF extraction is the expensive step of
// indexing; the cache makes rebuilds and repeated scans cheap for unchanged
// files. Text files are never cached, their extraction is already cheap.
type ExtractionCache struct {
	dir      string
	maxBytes int64
	logger   *slog.Logger

	// extract and upgradeAvailable are swappable for tests.
	extract          func(path string, maxPages int) (*pdf.Result, error)
	upgradeAvailable func() bool

	mu        sync.Mutex
	lastPrune time.Time
}

// cacheEntry is the on-disk JSON format of one cached extraction.
type cacheEntry struct {
	Title     string `json:"title"`
	Pages     []Page `json:"pages"`
	MtimeSecs int64  `json:"mtime_secs"`
	Size      int64  `json:"size"`
	Which     string `json:"which"`
}

// NewExtractionCache creates a cache rooted at dir. maxBytes bounds the total
// size of cached entries; zero or negative means the package default.
func NewExtractionCache(dir string, maxBytes int64, logger *slog.Logger) *ExtractionCache {
	if maxBytes <= 0 {
		maxBytes = config.MaxCacheBytes
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtractionCache{
		dir:              dir,
		maxBytes:         maxBytes,
		logger:           logger,
		extract:          pdf.ExtractPages,
		upgradeAvailable: pdf.PrimaryAvailable,
	}
}

// GetOrExtract returns the extracted document for a PDF, from cache when the
// file is unchanged, extracting and caching otherwise. A cached entry
// produced by a fallback extractor is re-extracted when the primary extractor
// has since become available; if that upgrade fails, the cached entry is
// served as-is.
func (c *ExtractionCache) GetOrExtract(path string, maxPages int) (*ExtractedDocument, error) {
	fp, err := FingerprintFile(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	entryPath := filepath.Join(c.dir, c.key(path, fp))
	if entry, err := readEntry(entryPath); err == nil {
		if c.shouldUpgrade(entry.Which) {
			if doc, err := c.extractAndStore(path, maxPages, fp, entryPath); err == nil {
				return doc, nil
			}
			c.logger.Debug("cache upgrade failed, serving cached entry",
				"path", path, "which", entry.Which)
		}
		return entryToDocument(path, entry), nil
	}

	c.maybePrune()
	doc, err := c.extractAndStore(path, maxPages, fp, entryPath)
	if err != nil {
		return nil, err
	}
	c.maybePrune()
	return doc, nil
}

// shouldUpgrade decides whether a cached entry produced by a weaker extractor
// should be re-extracted now that a stronger one may be available. Kept
// separate from the read path so the policy is testable on its own.
func (c *ExtractionCache) shouldUpgrade(cachedWhich string) bool {
	return cachedWhich != string(pdf.ExtractorPrimary) && c.upgradeAvailable()
}

func (c *ExtractionCache) extractAndStore(path string, maxPages int, fp Fingerprint, entryPath string) (*ExtractedDocument, error) {
	res, err := c.extract(path, maxPages)
	if err != nil {
		return nil, err
	}

	pages := make([]Page, 0, len(res.Pages))
	for _, p := range res.Pages {
		body := CleanContent(p.Body)
		if body == "" {
			continue
		}
		pages = append(pages, Page{Number: p.Number, Body: body})
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("%w for %s", pdf.ErrNoText, path)
	}

	entry := cacheEntry{
		Title:     res.Title,
		Pages:     pages,
		MtimeSecs: fp.MtimeSecs,
		Size:      fp.Size,
		Which:     string(res.Which),
	}
	if err := writeEntry(entryPath, entry); err != nil {
		// A write failure degrades to uncached extraction, not a hard error.
		c.logger.Warn("cache write failed", "path", path, "error", err)
	}
	return entryToDocument(path, entry), nil
}

// key derives the cache filename from the path and fingerprint, so any change
// to the file naturally misses the old entry.
func (c *ExtractionCache) key(path string, fp Fingerprint) string {
	h := xxhash.New()
	_, _ = h.WriteString(path)
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], uint64(fp.MtimeSecs))
	binary.LittleEndian.PutUint64(buf[8:], uint64(fp.Size))
	_, _ = h.Write(buf[:])
	return fmt.Sprintf("pdf_%016x.json", h.Sum64())
}

// Clear removes every cached entry.
func (c *ExtractionCache) Clear() error {
	ents, err := os.ReadDir(c.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, de := range ents {
		if !isEntryName(de.Name()) {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, de.Name())); err != nil {
			return err
		}
	}
	return nil
}

// maybePrune runs prune at most once per rate-limit interval. Pruning is
// best-effort housekeeping; failures are logged and swallowed.
func (c *ExtractionCache) maybePrune() {
	c.mu.Lock()
	if time.Since(c.lastPrune) < config.PruneInterval {
		c.mu.Unlock()
		return
	}
	c.lastPrune = time.Now()
	c.mu.Unlock()

	if err := c.prune(); err != nil {
		c.logger.Warn("cache prune failed", "error", err)
	}
}

// prune deletes entries older than the age limit, then deletes oldest-first
// until the cache fits its byte budget.
func (c *ExtractionCache) prune() error {
	ents, err := os.ReadDir(c.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	type entryInfo struct {
		path  string
		size  int64
		mtime time.Time
	}
	var infos []entryInfo
	var total int64
	cutoff := time.Now().Add(-config.MaxCacheAge)

	for _, de := range ents {
		if !isEntryName(de.Name()) {
			continue
		}
		full := filepath.Join(c.dir, de.Name())
		info, err := de.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			_ = os.Remove(full)
			continue
		}
		infos = append(infos, entryInfo{path: full, size: info.Size(), mtime: info.ModTime()})
		total += info.Size()
	}

	if total <= c.maxBytes {
		return nil
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].mtime.Before(infos[j].mtime) })
	for _, in := range infos {
		if total <= c.maxBytes {
			break
		}
		if err := os.Remove(in.path); err == nil {
			total -= in.size
		}
	}
	return nil
}

func isEntryName(name string) bool {
	return strings.HasPrefix(name, "pdf_") && strings.HasSuffix(name, ".json")
}

func readEntry(path string) (cacheEntry, error) {
	var entry cacheEntry
	data, err := os.ReadFile(path)
	if err != nil {
		return entry, err
	}
	if err := json.Unmarshal(data, &entry); err != nil {
		return entry, err
	}
	if len(entry.Pages) == 0 {
		return entry, fmt.Errorf("empty cache entry %s", path)
	}
	return entry, nil
}

func writeEntry(path string, entry cacheEntry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func entryToDocument(path string, entry cacheEntry) *ExtractedDocument {
	return &ExtractedDocument{
		Title: entry.Title,
		Path:  path,
		Pages: entry.Pages,
		Which: entry.Which,
	}
}
