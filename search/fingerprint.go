package search

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// Fingerprint identifies one on-disk version of a file. Two files with the
// same path, mtime, and size are treated as unchanged; content hashing is
// deliberately avoided so change detection never reads file bodies.
type Fingerprint struct {
	MtimeSecs int64 `json:"mtime_secs"`
	Size      int64 `json:"size"`
}

// FingerprintFile stats path and returns its fingerprint.
func FingerprintFile(path string) (Fingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Fingerprint{}, err
	}
	return Fingerprint{
		MtimeSecs: info.ModTime().Unix(),
		Size:      info.Size(),
	}, nil
}

// Snapshot maps every indexed file path to the fingerprint it had when it
// was last indexed. It is persisted beside the index and diffed against the
// filesystem to drive incremental updates.
type Snapshot map[string]Fingerprint

// LoadSnapshot reads a snapshot from path. A missing file is an empty
// snapshot, which makes the first incremental update behave like a rebuild.
func LoadSnapshot(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Snapshot{}, nil
	}
	if err != nil {
		return nil, err
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	if s == nil {
		s = Snapshot{}
	}
	return s, nil
}

// Save writes the snapshot atomically: a temp file in the same directory is
// renamed over the target so a crash never leaves a torn snapshot.
func (s Snapshot) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".snapshot-*.json")
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

// Diff compares the snapshot against the current fingerprints and splits the
// paths into new-or-changed and deleted. Unchanged paths appear in neither.
func (s Snapshot) Diff(current Snapshot) (changed, deleted []string) {
	for path, fp := range current {
		if prev, ok := s[path]; !ok || prev != fp {
			changed = append(changed, path)
		}
	}
	for path := range s {
		if _, ok := current[path]; !ok {
			deleted = append(deleted, path)
		}
	}
	return changed, deleted
}
