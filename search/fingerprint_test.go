package search

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprintFile(t *testing.T) {
	path := writeTestFile(t, "a.txt", "hello")

	fp, err := FingerprintFile(path)
	require.NoError(t, err)
	assert.Equal(t, int64(5), fp.Size)
	assert.NotZero(t, fp.MtimeSecs)
}

func TestFingerprintChangesWithMtime(t *testing.T) {
	path := writeTestFile(t, "a.txt", "hello")
	before, err := FingerprintFile(path)
	require.NoError(t, err)

	later := time.Unix(before.MtimeSecs+10, 0)
	require.NoError(t, os.Chtimes(path, later, later))

	after, err := FingerprintFile(path)
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
}

func TestSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.json")
	snap := Snapshot{
		"/docs/a.pdf": {MtimeSecs: 100, Size: 1000},
		"/docs/b.txt": {MtimeSecs: 200, Size: 42},
	}

	require.NoError(t, snap.Save(path))
	loaded, err := LoadSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, snap, loaded)
}

func TestLoadSnapshotMissingFile(t *testing.T) {
	snap, err := LoadSnapshot(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Empty(t, snap)
	assert.NotNil(t, snap)
}

func TestSnapshotDiff(t *testing.T) {
	prev := Snapshot{
		"unchanged": {MtimeSecs: 1, Size: 1},
		"modified":  {MtimeSecs: 1, Size: 1},
		"removed":   {MtimeSecs: 1, Size: 1},
	}
	current := Snapshot{
		"unchanged": {MtimeSecs: 1, Size: 1},
		"modified":  {MtimeSecs: 2, Size: 1},
		"added":     {MtimeSecs: 1, Size: 1},
	}

	changed, deleted := prev.Diff(current)
	assert.ElementsMatch(t, []string{"modified", "added"}, changed)
	assert.Equal(t, []string{"removed"}, deleted)
}

func TestSnapshotDiffEmptyPrevious(t *testing.T) {
	current := Snapshot{"a": {MtimeSecs: 1, Size: 1}}
	changed, deleted := Snapshot{}.Diff(current)
	assert.Equal(t, []string{"a"}, changed)
	assert.Empty(t, deleted)
}
