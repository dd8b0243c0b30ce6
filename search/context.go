package search

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"quietlibrary/config"
)

// ErrIndexUnavailable means no index has been built yet, or the index on disk
// is gone. Callers can degrade to a direct filesystem scan.
var ErrIndexUnavailable = errors.New("search index unavailable")

// Context owns the on-disk search state for one app directory: the bleve
// index, the extraction cache, and the fingerprint snapshot. The index handle
// is opened lazily on first query and held until a rebuild or update
// invalidates it, so repeated searches do not pay the open cost.
type Context struct {
	appDir   string
	settings config.Settings
	logger   *slog.Logger
	cache    *ExtractionCache

	mu  sync.Mutex
	idx bleve.Index
}

// NewContext creates a search context rooted at appDir.
func NewContext(appDir string, settings config.Settings, logger *slog.Logger) *Context {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Context{
		appDir:   appDir,
		settings: settings,
		logger:   logger,
	}
	c.cache = NewExtractionCache(c.CacheDir(), settings.MaxCacheMB*1024*1024, logger)
	return c
}

// IndexDir is where the bleve index lives.
func (c *Context) IndexDir() string {
	return filepath.Join(c.appDir, "index")
}

// CacheDir is where extraction cache entries live.
func (c *Context) CacheDir() string {
	return filepath.Join(c.appDir, "cache")
}

func (c *Context) snapshotPath() string {
	return filepath.Join(c.appDir, "index_snapshot.json")
}

// Cache exposes the extraction cache for maintenance commands.
func (c *Context) Cache() *ExtractionCache {
	return c.cache
}

// Logger returns the context's logger.
func (c *Context) Logger() *slog.Logger {
	return c.logger
}

// withIndex runs fn with the cached read handle, opening it on first use.
func (c *Context) withIndex(fn func(bleve.Index) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.idx == nil {
		idx, err := c.openIndex()
		if err != nil {
			return err
		}
		c.idx = idx
	}
	return fn(c.idx)
}

func (c *Context) openIndex() (bleve.Index, error) {
	idx, err := bleve.Open(c.IndexDir())
	if err == bleve.ErrorIndexPathDoesNotExist {
		return nil, fmt.Errorf("%w: run a rebuild first", ErrIndexUnavailable)
	}
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	return idx, nil
}

// Invalidate closes the cached handle so the next query reopens the index.
// Rebuild and Update call it around their writes; bleve does not allow a
// reader on a directory that is being replaced underneath it.
func (c *Context) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

// Close releases the index handle. The context stays usable; the handle
// reopens on the next query.
func (c *Context) Close() {
	c.Invalidate()
}

func (c *Context) closeLocked() {
	if c.idx == nil {
		return
	}
	if err := c.idx.Close(); err != nil {
		c.logger.Warn("closing index", "error", err)
	}
	c.idx = nil
}

// HasIndex reports whether an index exists on disk.
func (c *Context) HasIndex() bool {
	_, err := os.Stat(c.IndexDir())
	return err == nil
}
