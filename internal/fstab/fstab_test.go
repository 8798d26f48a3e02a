package fstab_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deviceos-project/vold/internal/fstab"
)

func validRecord() fstab.Record {
	return fstab.Record{
		Label:      "sdcard1",
		MountPoint: "auto",
		FSType:     "auto",
		BlkDevice:  "/devices/platform/sdcard",
	}
}

func TestRecord_Validate_OK(t *testing.T) {
	require.NoError(t, validRecord().Validate())
}

func TestRecord_Validate_RequiresLabel(t *testing.T) {
	r := validRecord()
	r.Label = ""
	require.Error(t, r.Validate())
}

func TestRecord_Validate_RequiresAutoMountPoint(t *testing.T) {
	r := validRecord()
	r.MountPoint = "/mnt/sdcard1"
	require.Error(t, r.Validate())
}

func TestRecord_Validate_RequiresBlkDevice(t *testing.T) {
	r := validRecord()
	r.BlkDevice = ""
	require.Error(t, r.Validate())
}

func TestRecord_SysfsPaths(t *testing.T) {
	r := validRecord()
	r.BlkDevice2 = []string{"/devices/platform/sdcard2", "/devices/platform/sdcard3"}
	require.Equal(t, []string{
		"/devices/platform/sdcard",
		"/devices/platform/sdcard2",
		"/devices/platform/sdcard3",
	}, r.SysfsPaths())
}

func TestFlag_Has(t *testing.T) {
	f := fstab.VoldManaged | fstab.NoFUSE
	require.True(t, f.Has(fstab.VoldManaged))
	require.True(t, f.Has(fstab.NoFUSE))
	require.False(t, f.Has(fstab.Encryptable))
}

func TestNewTable_ValidatesEachRecord(t *testing.T) {
	_, err := fstab.NewTable(validRecord(), fstab.Record{})
	require.Error(t, err)

	tbl, err := fstab.NewTable(validRecord())
	require.NoError(t, err)
	require.Len(t, tbl.Records(), 1)
}
