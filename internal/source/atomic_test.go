package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	fs := osfs.New(dir)

	require.NoError(t, WriteFileAtomic(fs, "out/report.csv", []byte("v1")))
	require.NoError(t, WriteFileAtomic(fs, "out/report.csv", []byte("v2")))

	got, err := os.ReadFile(filepath.Join(dir, "out", "report.csv"))
	require.NoError(t, err)
	assert.Equal(t, "v2", string(got))

	entries, err := os.ReadDir(filepath.Join(dir, "out"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestBatch_CommitPublishesAll(t *testing.T) {
	dir := t.TempDir()
	fs := osfs.New(dir)

	b := NewBatch(fs)
	require.NoError(t, b.Stage("a.html", []byte("A")))
	require.NoError(t, b.Stage("b.html", []byte("B")))
	assert.Equal(t, []string{"a.html", "b.html"}, b.Names())

	// Nothing visible before commit.
	_, err := os.Stat(filepath.Join(dir, "a.html"))
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, b.Commit())
	for name, want := range map[string]string{"a.html": "A", "b.html": "B"} {
		got, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.Equal(t, want, string(got))
	}
}

func TestBatch_AbortLeavesPreviousArtifacts(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.html", "old")
	fs := osfs.New(dir)

	b := NewBatch(fs)
	require.NoError(t, b.Stage("a.html", []byte("new")))
	require.NoError(t, b.Abort())

	got, err := os.ReadFile(filepath.Join(dir, "a.html"))
	require.NoError(t, err)
	assert.Equal(t, "old", string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
