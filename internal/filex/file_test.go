package filex

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnsureDir_CreatesNestedDirectory(t *testing.T) {
	tmp := t.TempDir()

	got, err := EnsureDir(filepath.Join(tmp, "data", "attachments"))
	require.NoError(t, err)
	require.Equal(t, filepath.Join(tmp, "data", "attachments"), got)

	fi, err := os.Stat(got)
	require.NoError(t, err)
	require.True(t, fi.IsDir(), "should create a directory")

	if runtime.GOOS != "windows" {
		require.Equal(t, os.FileMode(0o700), fi.Mode().Perm()&0o700)
	}
}

func TestEnsureDir_Idempotent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "attachments")

	first, err := EnsureDir(dir)
	require.NoError(t, err)
	second, err := EnsureDir(dir)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestEnsureDir_FailsIfFileWithSameNameExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attachments")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o660))

	_, err := EnsureDir(path)
	require.Error(t, err, "should fail when a file exists with the same name")
}

func TestReader_ImportAndRead(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(t.TempDir(), "photo.png")
	require.NoError(t, os.WriteFile(src, []byte("png-bytes"), 0o660))

	r := NewReader(root)
	uri, n, err := r.Import(src)
	require.NoError(t, err)
	require.EqualValues(t, len("png-bytes"), n)
	require.Equal(t, ".png", filepath.Ext(uri))
	require.False(t, filepath.IsAbs(uri))

	data, err := r.ReadAttachment(uri)
	require.NoError(t, err)
	require.Equal(t, []byte("png-bytes"), data)

	// Absolute paths bypass the root.
	data, err = r.ReadAttachment(src)
	require.NoError(t, err)
	require.Equal(t, []byte("png-bytes"), data)

	require.NoError(t, r.Remove(uri))
	_, err = r.ReadAttachment(uri)
	require.ErrorIs(t, err, os.ErrNotExist)
	require.NoError(t, r.Remove(uri))
}

func TestReader_ImportMissingSource(t *testing.T) {
	_, _, err := NewReader(t.TempDir()).Import(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}
