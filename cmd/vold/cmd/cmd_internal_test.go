package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/deviceos-project/vold/internal/event"
	"github.com/deviceos-project/vold/internal/fstab"
)

func newTestCmd(t *testing.T, cfgPath, fstabPath string) *cobra.Command {
	t.Helper()
	c := &cobra.Command{Use: "test"}
	c.Flags().String("config", cfgPath, "")
	c.Flags().String("fstab", fstabPath, "")
	c.Flags().String("log-level", "INFO", "")
	return c
}

func TestRecordConfig_ToRecord_TranslatesFlags(t *testing.T) {
	rc := recordConfig{
		Label:      "sdcard",
		MountPoint: "auto",
		FSType:     "vfat",
		BlkDevice:  "179:0",
		Flags:      []string{"voldmanaged", "encryptable", "nofuse", "bogus"},
	}
	rec := rc.toRecord()

	require.Equal(t, "sdcard", rec.Label)
	require.True(t, rec.Flags.Has(fstab.VoldManaged))
	require.True(t, rec.Flags.Has(fstab.Encryptable))
	require.True(t, rec.Flags.Has(fstab.NoFUSE))
	require.False(t, rec.Flags.Has(fstab.NonRemovable))
}

func TestLoadRecords_EmptyPathErrors(t *testing.T) {
	_, err := loadRecords("")
	require.Error(t, err)
}

func TestLoadRecords_MissingFileErrors(t *testing.T) {
	_, err := loadRecords("/nonexistent/vold-fstab.yaml")
	require.Error(t, err)
}

func TestFsTypeLabel(t *testing.T) {
	require.Equal(t, "auto", fsTypeLabel(""))
	require.Equal(t, "ntfs", fsTypeLabel("ntfs"))
}

func TestParseEventLine_DiskAdd(t *testing.T) {
	ev, err := parseEventLine("add disk 179 0 nparts=2")
	require.NoError(t, err)
	require.Equal(t, event.Add, ev.Action)
	require.Equal(t, event.Disk, ev.DevType)
	require.Equal(t, 179, ev.Major)
	require.Equal(t, 0, ev.Minor)
	require.Equal(t, 2, ev.NParts)
	require.Equal(t, -1, ev.PartN)
	require.Equal(t, "/devices/block/179:0", ev.DevPath)
}

func TestParseEventLine_PartitionAddWithDevPathOverride(t *testing.T) {
	ev, err := parseEventLine("add partition 179 1 partn=1 devpath=/devices/block/179:1")
	require.NoError(t, err)
	require.Equal(t, event.Partition, ev.DevType)
	require.Equal(t, 1, ev.PartN)
	require.Equal(t, "/devices/block/179:1", ev.DevPath)
}

func TestParseEventLine_RemoveDisk(t *testing.T) {
	ev, err := parseEventLine("remove disk 179 0")
	require.NoError(t, err)
	require.Equal(t, event.Remove, ev.Action)
}

func TestParseEventLine_MalformedTooFewFields(t *testing.T) {
	_, err := parseEventLine("add disk 179")
	require.Error(t, err)
}

func TestParseEventLine_UnknownAction(t *testing.T) {
	_, err := parseEventLine("frobnicate disk 179 0")
	require.Error(t, err)
}

func TestParseEventLine_UnknownDevType(t *testing.T) {
	_, err := parseEventLine("add gadget 179 0")
	require.Error(t, err)
}

func TestParseEventLine_BadMajorMinor(t *testing.T) {
	_, err := parseEventLine("add disk x y")
	require.Error(t, err)
}

func TestParseEventLine_IgnoresMalformedKeyValue(t *testing.T) {
	ev, err := parseEventLine("add disk 179 0 garbage")
	require.NoError(t, err)
	require.Equal(t, -1, ev.NParts)
}

const testFstabYAML = `
volumes:
  - label: sdcard
    mount_point: auto
    fs_type: vfat
    blk_device: "179:0"
    flags: [voldmanaged, nonremovable]
`

func TestNewDaemon_RegistersVolumesFromFstab(t *testing.T) {
	fstabPath := filepath.Join(t.TempDir(), "vold-fstab.yaml")
	require.NoError(t, os.WriteFile(fstabPath, []byte(testFstabYAML), 0644))

	d, err := newDaemon(newTestCmd(t, "", fstabPath))
	require.NoError(t, err)

	dv, err := d.find("sdcard")
	require.NoError(t, err)
	require.Equal(t, "sdcard", dv.Label)
}

func TestNewDaemon_FindUnknownLabelErrors(t *testing.T) {
	fstabPath := filepath.Join(t.TempDir(), "vold-fstab.yaml")
	require.NoError(t, os.WriteFile(fstabPath, []byte(testFstabYAML), 0644))

	d, err := newDaemon(newTestCmd(t, "", fstabPath))
	require.NoError(t, err)

	_, err = d.find("nonexistent")
	require.Error(t, err)
}

func TestNewDaemon_InvalidRecordErrors(t *testing.T) {
	fstabPath := filepath.Join(t.TempDir(), "vold-fstab.yaml")
	require.NoError(t, os.WriteFile(fstabPath, []byte(`
volumes:
  - label: ""
    mount_point: auto
    blk_device: "179:0"
`), 0644))

	_, err := newDaemon(newTestCmd(t, "", fstabPath))
	require.Error(t, err)
}

func TestNewDaemon_BadConfigPathErrors(t *testing.T) {
	fstabPath := filepath.Join(t.TempDir(), "vold-fstab.yaml")
	require.NoError(t, os.WriteFile(fstabPath, []byte(testFstabYAML), 0644))

	_, err := newDaemon(newTestCmd(t, "/nonexistent/vold.yaml", fstabPath))
	require.Error(t, err)
}
