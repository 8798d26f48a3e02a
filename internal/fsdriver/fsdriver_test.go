package fsdriver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deviceos-project/vold/internal/verr"
)

func TestCheckSizeExFAT(t *testing.T) {
	require.False(t, CheckSizeExFAT(1<<20))
	require.True(t, CheckSizeExFAT(sdxcMinBytes))
	require.True(t, CheckSizeExFAT(sdxcMaxBytes))
	require.False(t, CheckSizeExFAT(sdxcMaxBytes+1))
}

func TestMask_WorldWritableForcesZero(t *testing.T) {
	require.Equal(t, uint32(0), mask(0o077, true))
	require.Equal(t, uint32(0o077), mask(0o077, false))
}

func TestFatOptionString(t *testing.T) {
	opts := MountOpts{UID: 1023, GID: 1023, FMask: 0o702, DMask: 0o702}
	require.Equal(t, "utf8,uid=1023,gid=1023,fmask=0702,dmask=0702", fatOptionString(opts))
}

func TestFatOptionString_WorldWritable(t *testing.T) {
	opts := MountOpts{UID: 1023, GID: 1023, FMask: 0o702, DMask: 0o702, WorldWritable: true}
	require.Equal(t, "utf8,uid=1023,gid=1023,fmask=0000,dmask=0000", fatOptionString(opts))
}

func TestExfatOptionString(t *testing.T) {
	opts := MountOpts{UID: 0, GID: 0, FMask: 0o022, DMask: 0o022}
	require.Equal(t, "utf8,uid=0,gid=0,fmask=0022,dmask=0022", exfatOptionString(opts))
}

func TestNtfsOptionString(t *testing.T) {
	opts := MountOpts{UID: 1000, GID: 1000, FMask: 0o133, DMask: 0o022}
	require.Equal(t, "utf8,uid=1000,gid=1000,fmask=0133,dmask=0022,iocharset=utf8,force", ntfsOptionString(opts))
}

func TestFatBitsFor(t *testing.T) {
	require.Equal(t, "16", fatBitsFor(1024))
	require.Equal(t, "32", fatBitsFor(10_000_000))
	require.Equal(t, "32", fatBitsFor(0))
}

// fakeTool writes an executable shell script named name into a temp dir,
// prepends it to PATH, and returns the script's path.
func fakeTool(t *testing.T, name, script string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0755))
	return path
}

func TestFAT_Check_PassesOnExitZero(t *testing.T) {
	d := &FAT{FsckPath: fakeTool(t, "fsck.fat", "exit 0")}
	require.NoError(t, d.Check("/dev/fake"))
}

func TestFAT_Check_RepairableCorruptionIsCorruptFS(t *testing.T) {
	d := &FAT{FsckPath: fakeTool(t, "fsck.fat", "exit 1")}
	err := d.Check("/dev/fake")
	require.Error(t, err)
	require.True(t, verr.Is(err, verr.CorruptFS))
}

func TestFAT_Check_BenignExitCodesPass(t *testing.T) {
	for _, code := range []string{"0", "2", "4"} {
		d := &FAT{FsckPath: fakeTool(t, "fsck.fat", "exit "+code)}
		require.NoError(t, d.Check("/dev/fake"))
	}
}

func TestExFAT_Check_AdvisoryFailureIsNotSupported(t *testing.T) {
	d := &ExFAT{FsckPath: fakeTool(t, "fsck.exfat", "exit 1")}
	err := d.Check("/dev/fake")
	require.Error(t, err)
	require.True(t, verr.Is(err, verr.NotSupported))
}

func TestNTFS_Check_AdvisoryFailureIsNotSupported(t *testing.T) {
	d := &NTFS{FsckPath: fakeTool(t, "ntfsfix", "exit 1")}
	err := d.Check("/dev/fake")
	require.Error(t, err)
	require.True(t, verr.Is(err, verr.NotSupported))
}

func TestConstructors(t *testing.T) {
	require.Equal(t, "fsck.fat", NewFAT().FsckPath)
	require.Equal(t, "mkfs.vfat", NewFAT().MkfsPath)
	require.Equal(t, "fsck.exfat", NewExFAT().FsckPath)
	require.Equal(t, "ntfsfix", NewNTFS().FsckPath)
	require.Equal(t, "mkntfs", NewNTFS().MkfsPath)
}
