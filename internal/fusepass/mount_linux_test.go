//go:build linux
// +build linux

package fusepass_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deviceos-project/vold/internal/fusepass"
)

func TestPrepareMountpoint_CreatesMissingDir(t *testing.T) {
	mp := filepath.Join(t.TempDir(), "fuse-mnt")
	require.NoError(t, fusepass.PrepareMountpoint(mp))

	fi, err := os.Stat(mp)
	require.NoError(t, err)
	require.True(t, fi.IsDir())
}

func TestPrepareMountpoint_AcceptsExistingEmptyDir(t *testing.T) {
	mp := t.TempDir()
	require.NoError(t, fusepass.PrepareMountpoint(mp))
}

func TestPrepareMountpoint_RejectsNonEmptyDir(t *testing.T) {
	mp := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(mp, "already-here"), nil, 0644))

	err := fusepass.PrepareMountpoint(mp)
	require.Error(t, err)
}

func TestPrepareMountpoint_RejectsFileInPlaceOfDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	err := fusepass.PrepareMountpoint(path)
	require.Error(t, err)
}

func TestIsDirEmpty_True(t *testing.T) {
	empty, err := fusepass.IsDirEmpty(t.TempDir())
	require.NoError(t, err)
	require.True(t, empty)
}

func TestIsDirEmpty_False(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f"), nil, 0644))

	empty, err := fusepass.IsDirEmpty(dir)
	require.NoError(t, err)
	require.False(t, empty)
}

func TestIsDirEmpty_MissingDirErrors(t *testing.T) {
	_, err := fusepass.IsDirEmpty(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}
