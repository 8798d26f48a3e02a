package directvolume_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	prommetrics "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/deviceos-project/vold/internal/config"
	"github.com/deviceos-project/vold/internal/directvolume"
	"github.com/deviceos-project/vold/internal/event"
	"github.com/deviceos-project/vold/internal/fstab"
	"github.com/deviceos-project/vold/internal/metrics"
	"github.com/deviceos-project/vold/internal/vlog"
	"github.com/deviceos-project/vold/internal/volume"
)

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func newTestDV(t *testing.T) *directvolume.DirectVolume {
	t.Helper()
	log := vlog.New(discardWriter{}, vlog.ErrorLevel)
	sink := event.NewSink()
	rec := fstab.Record{Label: "sdcard1", MountPoint: "auto", FSType: "auto", BlkDevice: "/devices/platform/sdcard"}
	v := volume.New(rec, log, sink)
	dv := directvolume.New(v, rec.SysfsPaths(), -1, config.Default(), nil)
	dv.NodeDir = t.TempDir()
	dv.MountedMarkerDir = t.TempDir()
	return dv
}

func TestDirectVolume_DevNodePath(t *testing.T) {
	dv := newTestDV(t)
	require.Equal(t, dv.NodeDir+"/8:16", dv.DevNodePath(8, 16))
}

func TestDirectVolume_Matches_DiskAdd(t *testing.T) {
	dv := newTestDV(t)

	require.True(t, dv.Matches(event.BlockEvent{
		DevPath: "/devices/platform/sdcard/block/mmcblk0", DevType: event.Disk, Action: event.Add,
		Major: 179, Minor: 0,
	}))
	require.False(t, dv.Matches(event.BlockEvent{
		DevPath: "/devices/platform/other/block/sda", DevType: event.Disk, Action: event.Add,
		Major: 8, Minor: 0,
	}))
}

func TestDirectVolume_Matches_RejectsSpuriousMinor240(t *testing.T) {
	dv := newTestDV(t)
	require.False(t, dv.Matches(event.BlockEvent{
		DevPath: "/devices/platform/sdcard/block/dm-0", DevType: event.Disk, Action: event.Add,
		Major: 253, Minor: 240, NParts: 0,
	}))
}

func TestDirectVolume_Matches_DiskAddOnlyOnce(t *testing.T) {
	dv := newTestDV(t)
	require.NoError(t, dv.HandleEvent(event.BlockEvent{
		DevPath: "/devices/platform/sdcard/block/mmcblk0", DevType: event.Disk, Action: event.Add,
		Major: 179, Minor: 0, NParts: 1,
	}))

	require.False(t, dv.Matches(event.BlockEvent{
		DevPath: "/devices/platform/sdcard/block/mmcblk1", DevType: event.Disk, Action: event.Add,
		Major: 179, Minor: 8,
	}))
}

func TestDirectVolume_DiskAdded_NoPartitionsUnreadable(t *testing.T) {
	dv := newTestDV(t)

	err := dv.HandleEvent(event.BlockEvent{
		DevPath: "/devices/platform/sdcard/block/mmcblk0", DevType: event.Disk, Action: event.Add,
		Major: 179, Minor: 0, NParts: 0,
	})
	require.NoError(t, err)
	require.Equal(t, volume.NoMedia, dv.State())
	require.Equal(t, 179, dv.DiskMajor)
	require.Equal(t, 0, dv.DiskMinor)
}

func TestDirectVolume_DiskAdded_WithPartitionsGoesPending(t *testing.T) {
	dv := newTestDV(t)

	err := dv.HandleEvent(event.BlockEvent{
		DevPath: "/devices/platform/sdcard/block/mmcblk0", DevType: event.Disk, Action: event.Add,
		Major: 179, Minor: 0, NParts: 2,
	})
	require.NoError(t, err)
	require.Equal(t, volume.Pending, dv.State())
	require.Equal(t, 2, dv.NumParts)
	require.Equal(t, 2, dv.PendingPartCount)
}

func TestDirectVolume_PartitionAdded_DuplicateIsIdempotent(t *testing.T) {
	dv := newTestDV(t)
	require.NoError(t, dv.HandleEvent(event.BlockEvent{
		DevPath: "/devices/platform/sdcard/block/mmcblk0", DevType: event.Disk, Action: event.Add,
		Major: 179, Minor: 0, NParts: 2,
	}))

	ev := event.BlockEvent{
		DevPath: "/devices/platform/sdcard/block/mmcblk0p1", DevType: event.Partition, Action: event.Add,
		Major: 179, Minor: 1, PartN: 1,
	}
	require.NoError(t, dv.HandleEvent(ev))
	require.Equal(t, 1, dv.PendingPartCount)

	// A redundant uevent for the same partition index must not
	// double-decrement the pending counter.
	require.NoError(t, dv.HandleEvent(ev))
	require.Equal(t, 1, dv.PendingPartCount)
}

func TestDirectVolume_PartitionAdded_AllArrivedAttemptsMountpointInit(t *testing.T) {
	dv := newTestDV(t)
	require.NoError(t, dv.HandleEvent(event.BlockEvent{
		DevPath: "/devices/platform/sdcard/block/mmcblk0", DevType: event.Disk, Action: event.Add,
		Major: 179, Minor: 0, NParts: 1,
	}))

	require.NoError(t, dv.HandleEvent(event.BlockEvent{
		DevPath: "/devices/platform/sdcard/block/mmcblk0p1", DevType: event.Partition, Action: event.Add,
		Major: 179, Minor: 1, PartN: 1,
	}))

	// No real device node backs the synthetic minor in this test
	// environment, so probing it fails and the volume falls back to
	// NoMedia rather than Idle.
	require.Equal(t, volume.NoMedia, dv.State())
}

func TestDirectVolume_DiskRemoved_ResetsDiskIdentity(t *testing.T) {
	dv := newTestDV(t)
	require.NoError(t, dv.HandleEvent(event.BlockEvent{
		DevPath: "/devices/platform/sdcard/block/mmcblk0", DevType: event.Disk, Action: event.Add,
		Major: 179, Minor: 0, NParts: 0,
	}))

	require.NoError(t, dv.HandleEvent(event.BlockEvent{
		DevPath: "/devices/platform/sdcard/block/mmcblk0", DevType: event.Disk, Action: event.Remove,
		Major: 179, Minor: 0,
	}))

	require.Equal(t, volume.NoMedia, dv.State())
	require.Equal(t, -1, dv.DiskMajor)
	require.Equal(t, -1, dv.DiskMinor)
	require.Equal(t, 0, dv.NumParts)
	require.False(t, dv.Removing())
}

func TestDirectVolume_ShareDevicePath_WholeDiskByDefault(t *testing.T) {
	dv := newTestDV(t)
	dv.DiskMajor, dv.DiskMinor = 179, 0
	require.Equal(t, dv.DevNodePath(179, 0), dv.ShareDevicePath())
}

func TestDirectVolume_DiskRemoved_WhileMountedCountsUnsafeRemoval(t *testing.T) {
	dv := newTestDV(t)
	reg, _ := metrics.NewTestRegistry()
	dv.Metrics = reg

	require.NoError(t, dv.HandleEvent(event.BlockEvent{
		DevPath: "/devices/platform/sdcard/block/mmcblk0", DevType: event.Disk, Action: event.Add,
		Major: 179, Minor: 0, NParts: 0,
	}))

	dv.Lock()
	dv.SetState(volume.Mounted)
	dv.CurrentlyMountedKdev = dv.DevNodePath(179, 0)
	dv.Unlock()

	require.NoError(t, dv.HandleEvent(event.BlockEvent{
		DevPath: "/devices/platform/sdcard/block/mmcblk0", DevType: event.Disk, Action: event.Remove,
		Major: 179, Minor: 0,
	}))

	require.Equal(t, float64(1), prommetrics.ToFloat64(reg.UnsafeRemovals.WithLabelValues("sdcard1")))
}
