package search

import (
	"io/fs"
	"path/filepath"
	"sort"

	"quietlibrary/config"
)

// EnumerateFiles walks every watched folder and returns the supported files
// found, deduplicated and sorted. Unreadable entries are skipped rather than
// failing the walk; a library with one bad directory should still index the
// rest.
func EnumerateFiles(folders []string) []string {
	seen := make(map[string]struct{})

	for _, root := range folders {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() {
				if config.ShouldSkipDirectory(d.Name()) && path != root {
					return filepath.SkipDir
				}
				return nil
			}
			if !config.IsSupportedFile(path) {
				return nil
			}
			if abs, aerr := filepath.Abs(path); aerr == nil {
				path = abs
			}
			seen[path] = struct{}{}
			return nil
		})
	}

	files := make([]string, 0, len(seen))
	for path := range seen {
		files = append(files, path)
	}
	sort.Strings(files)
	return files
}

// SnapshotFiles fingerprints every file in the list. Files that disappear
// between the walk and the stat are dropped.
func SnapshotFiles(files []string) Snapshot {
	snap := make(Snapshot, len(files))
	for _, path := range files {
		fp, err := FingerprintFile(path)
		if err != nil {
			continue
		}
		snap[path] = fp
	}
	return snap
}
