package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDiskBackendOpenAndRead(t *testing.T) {
	dir := t.TempDir()
	content := []byte("0123456789")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "video.bin"), content, 0o644))

	b := NewDiskBackend(dir)

	info, err := b.Stat("video.bin")
	require.NoError(t, err)
	require.True(t, info.Exists)
	require.Equal(t, int64(len(content)), info.Size)

	f, err := b.Open("video.bin")
	require.NoError(t, err)
	defer f.Close()

	require.Equal(t, int64(len(content)), f.Size())

	buf := make([]byte, 4)
	n, err := f.ReadAt(buf, 3)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, []byte("3456"), buf)
}

func TestDiskBackendMissingFile(t *testing.T) {
	b := NewDiskBackend(t.TempDir())

	info, err := b.Stat("missing.bin")
	require.NoError(t, err)
	require.False(t, info.Exists)

	_, err = b.Open("missing.bin")
	require.ErrorIs(t, err, ErrFileDoesNotExist)
}

func TestDiskBackendEmptyRootUsesPathAsGiven(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "abs.bin")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	b := NewDiskBackend("")
	info, err := b.Stat(path)
	require.NoError(t, err)
	require.True(t, info.Exists)
}
