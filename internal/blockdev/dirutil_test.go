package blockdev_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deviceos-project/vold/internal/blockdev"
)

func TestEnsureMountpoint_CreatesMissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "mnt", "sdcard1")
	require.NoError(t, blockdev.EnsureMountpoint(dir, 0755))

	fi, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, fi.IsDir())
}

func TestEnsureMountpoint_ExistingDirIsFine(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, blockdev.EnsureMountpoint(dir, 0755))
}

func TestEnsureMountpoint_RejectsFileInPlaceOfDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sdcard1")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	require.Error(t, blockdev.EnsureMountpoint(path, 0755))
}

func TestIsDirEmpty(t *testing.T) {
	dir := t.TempDir()
	empty, err := blockdev.IsDirEmpty(dir)
	require.NoError(t, err)
	require.True(t, empty)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "f"), nil, 0644))
	empty, err = blockdev.IsDirEmpty(dir)
	require.NoError(t, err)
	require.False(t, empty)
}

func TestIsDirEmpty_MissingDir(t *testing.T) {
	_, err := blockdev.IsDirEmpty(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}
