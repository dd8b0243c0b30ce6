package library

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Bookmark marks a place in a document. Page is 0 for documents without
// pages.
type Bookmark struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	Page      int       `json:"page,omitempty"`
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Store) bookmarksPath() string {
	return filepath.Join(s.appDir, "bookmarks.json")
}

// Bookmarks returns all saved bookmarks, newest first.
func (s *Store) Bookmarks() ([]Bookmark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readBookmarks()
}

// AddBookmark saves a bookmark and returns it with its generated ID.
func (s *Store) AddBookmark(path string, page int, title string) (Bookmark, error) {
	bm := Bookmark{
		ID:        uuid.NewString(),
		Path:      path,
		Page:      page,
		Title:     title,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.readBookmarks()
	if err != nil {
		return Bookmark{}, err
	}
	// Newest first keeps recent reading at the top of listings.
	all = append([]Bookmark{bm}, all...)
	if err := writeJSON(s.bookmarksPath(), all); err != nil {
		return Bookmark{}, err
	}
	return bm, nil
}

// RemoveBookmark deletes a bookmark by ID.
func (s *Store) RemoveBookmark(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.readBookmarks()
	if err != nil {
		return err
	}
	kept := all[:0]
	found := false
	for _, bm := range all {
		if bm.ID == id {
			found = true
			continue
		}
		kept = append(kept, bm)
	}
	if !found {
		return fmt.Errorf("no bookmark with id %s", id)
	}
	return writeJSON(s.bookmarksPath(), kept)
}

func (s *Store) readBookmarks() ([]Bookmark, error) {
	data, err := os.ReadFile(s.bookmarksPath())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var all []Bookmark
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.bookmarksPath(), err)
	}
	return all, nil
}
