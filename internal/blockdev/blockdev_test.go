package blockdev_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deviceos-project/vold/internal/blockdev"
)

func TestOpen_RegularFileFallsBackToStatSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image.img")
	require.NoError(t, os.WriteFile(path, make([]byte, 4096), 0644))

	dev, err := blockdev.Open(path)
	require.NoError(t, err)
	defer dev.Close()

	require.False(t, dev.IsBlock)
	require.Equal(t, int64(4096), dev.Size)
	require.Equal(t, int64(blockdev.DefaultSectorSize), dev.SectorSize)
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := blockdev.Open(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}

func TestDevice_ReadWriteAt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image.img")
	require.NoError(t, os.WriteFile(path, make([]byte, 512), 0644))

	dev, err := blockdev.OpenRW(path)
	require.NoError(t, err)
	defer dev.Close()

	n, err := dev.WriteAt([]byte("hello"), 10)
	require.NoError(t, err)
	require.Equal(t, 5, n)

	buf := make([]byte, 5)
	_, err = dev.ReadAt(buf, 10)
	require.NoError(t, err)
	require.Equal(t, "hello", string(buf))
}

func TestEraseMBR(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image.img")
	data := make([]byte, 1024)
	for i := range data {
		data[i] = 0xAB
	}
	require.NoError(t, os.WriteFile(path, data, 0644))

	require.NoError(t, blockdev.EraseMBR(path))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, make([]byte, 512), got[:512])
	require.Equal(t, byte(0xAB), got[512]) // bytes past the MBR are untouched
}
