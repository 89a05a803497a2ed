package writeback

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names
}

func TestFile_CommitCreates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.xml")

	f, err := Create(path)
	require.NoError(t, err)
	_, err = f.Write([]byte("hello\n"))
	require.NoError(t, err)

	// Nothing visible before commit.
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, f.Commit())
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(got))
	assert.Equal(t, []string{"out.xml"}, listDir(t, dir))
}

func TestFile_AbortLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.xml")

	f, err := Create(path)
	require.NoError(t, err)
	_, err = f.Write([]byte("partial"))
	require.NoError(t, err)
	f.Abort()

	assert.Empty(t, listDir(t, dir))
}

func TestFile_AbortKeepsExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.xml")
	require.NoError(t, os.WriteFile(path, []byte("previous"), 0o644))

	f, err := Create(path)
	require.NoError(t, err)
	_, err = f.Write([]byte("partial"))
	require.NoError(t, err)
	f.Abort()

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "previous", string(got))
}

func TestFile_PreservesPermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xml")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o600))

	f, err := Create(path)
	require.NoError(t, err)
	_, err = f.Write([]byte("new"))
	require.NoError(t, err)
	require.NoError(t, f.Commit())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFile_AbortAfterCommitIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xml")
	f, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Commit())
	f.Abort()

	_, err = os.Stat(path)
	assert.NoError(t, err)
	assert.Error(t, f.Commit())
}

func TestCreate_MissingDirectory(t *testing.T) {
	_, err := Create(filepath.Join(t.TempDir(), "nope", "out.xml"))
	assert.Error(t, err)
}

func TestCreate_Directory(t *testing.T) {
	_, err := Create(t.TempDir())
	assert.Error(t, err)
}

func TestWriteFile_ErrorDiscards(t *testing.T) {
	dir := t.TempDir()
	boom := errors.New("boom")
	err := WriteFile(filepath.Join(dir, "r.json"), func(w io.Writer) error {
		_, _ = io.WriteString(w, "{")
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, listDir(t, dir))
}
