// Package library persists the user's document library: the watched folders
// that feed the index and the bookmarks saved while reading. Both live as
// small JSON files in the app directory.
package library

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Store reads and writes the library files under one app directory. Methods
// are safe for concurrent use within a process; each mutation rewrites the
// whole file, which is fine at library scale.
type Store struct {
	appDir string
	mu     sync.Mutex
}

// NewStore creates a store rooted at appDir.
func NewStore(appDir string) *Store {
	return &Store{appDir: appDir}
}

type libraryFile struct {
	Folders []string `json:"folders"`
}

func (s *Store) libraryPath() string {
	return filepath.Join(s.appDir, "library.json")
}

// Folders returns the watched folders, sorted. A missing file is an empty
// library.
func (s *Store) Folders() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lf, err := s.readLibrary()
	if err != nil {
		return nil, err
	}
	return lf.Folders, nil
}

// AddFolder adds a directory to the library. The path is resolved to its
// absolute form and must exist as a directory; adding a folder twice is a
// no-op.
func (s *Store) AddFolder(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("folder %s: %w", abs, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", abs)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	lf, err := s.readLibrary()
	if err != nil {
		return err
	}
	for _, f := range lf.Folders {
		if f == abs {
			return nil
		}
	}
	lf.Folders = append(lf.Folders, abs)
	sort.Strings(lf.Folders)
	return s.writeLibrary(lf)
}

// RemoveFolder removes a directory from the library. Removing a folder that
// is not in the library is an error so typos surface.
func (s *Store) RemoveFolder(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	lf, err := s.readLibrary()
	if err != nil {
		return err
	}
	kept := lf.Folders[:0]
	found := false
	for _, f := range lf.Folders {
		if f == abs {
			found = true
			continue
		}
		kept = append(kept, f)
	}
	if !found {
		return fmt.Errorf("folder not in library: %s", abs)
	}
	lf.Folders = kept
	return s.writeLibrary(lf)
}

func (s *Store) readLibrary() (libraryFile, error) {
	var lf libraryFile
	data, err := os.ReadFile(s.libraryPath())
	if errors.Is(err, fs.ErrNotExist) {
		return lf, nil
	}
	if err != nil {
		return lf, err
	}
	if err := json.Unmarshal(data, &lf); err != nil {
		return lf, fmt.Errorf("parse %s: %w", s.libraryPath(), err)
	}
	return lf, nil
}

func (s *Store) writeLibrary(lf libraryFile) error {
	return writeJSON(s.libraryPath(), lf)
}

// writeJSON writes v atomically via a temp file rename.
func writeJSON(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".library-*.json")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
