package volmgr_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	prommetrics "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/deviceos-project/vold/internal/config"
	"github.com/deviceos-project/vold/internal/directvolume"
	"github.com/deviceos-project/vold/internal/event"
	"github.com/deviceos-project/vold/internal/fstab"
	"github.com/deviceos-project/vold/internal/metrics"
	"github.com/deviceos-project/vold/internal/vlog"
	"github.com/deviceos-project/vold/internal/volmgr"
	"github.com/deviceos-project/vold/internal/volume"
)

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func newTestManager(t *testing.T, labels ...string) (*volmgr.Manager, *event.Sink, []*directvolume.DirectVolume) {
	t.Helper()
	sink := event.NewSink()
	mgr := volmgr.New(sink, nil)
	log := vlog.New(discardWriter{}, vlog.ErrorLevel)

	var dvs []*directvolume.DirectVolume
	for _, label := range labels {
		rec := fstab.Record{Label: label, MountPoint: "auto", FSType: "auto", BlkDevice: "/devices/platform/" + label}
		v := volume.New(rec, log, sink)
		dv := directvolume.New(v, rec.SysfsPaths(), -1, config.Default(), nil)
		dv.NodeDir = t.TempDir()
		dv.MountedMarkerDir = t.TempDir()
		mgr.Register(dv)
		dvs = append(dvs, dv)
	}
	return mgr, sink, dvs
}

func TestManager_LookupAndVolumes(t *testing.T) {
	mgr, _, dvs := newTestManager(t, "sdcard1", "usbdisk1")

	require.Len(t, mgr.Volumes(), 2)
	found, ok := mgr.Lookup("usbdisk1")
	require.True(t, ok)
	require.Same(t, dvs[1], found)

	_, ok = mgr.Lookup("nope")
	require.False(t, ok)
}

func TestManager_DispatchEvent_RoutesToMatchingVolumeOnly(t *testing.T) {
	mgr, _, dvs := newTestManager(t, "sdcard1", "usbdisk1")

	err := mgr.DispatchEvent(context.Background(), event.BlockEvent{
		DevPath: "/devices/platform/usbdisk1/block/sda", DevType: event.Disk, Action: event.Add,
		Major: 8, Minor: 0, NParts: 0,
	})
	require.NoError(t, err)

	require.Equal(t, -1, dvs[0].DiskMajor)
	require.Equal(t, 8, dvs[1].DiskMajor)
}

func TestManager_Register_PublishesVolumesByState(t *testing.T) {
	sink := event.NewSink()
	mgr := volmgr.New(sink, nil)
	reg, _ := metrics.NewTestRegistry()
	mgr.Metrics = reg
	log := vlog.New(discardWriter{}, vlog.ErrorLevel)

	rec := fstab.Record{Label: "sdcard1", MountPoint: "auto", FSType: "auto", BlkDevice: "/devices/platform/sdcard1"}
	v := volume.New(rec, log, sink)
	dv := directvolume.New(v, rec.SysfsPaths(), -1, config.Default(), nil)
	dv.NodeDir = t.TempDir()
	dv.MountedMarkerDir = t.TempDir()
	mgr.Register(dv)

	require.Equal(t, float64(1), prommetrics.ToFloat64(reg.VolumesByState.WithLabelValues("NoMedia")))
	require.Equal(t, float64(0), prommetrics.ToFloat64(reg.VolumesByState.WithLabelValues("Mounted")))

	require.NoError(t, dv.HandleEvent(event.BlockEvent{
		DevPath: "/devices/platform/sdcard1/block/mmcblk0", DevType: event.Disk, Action: event.Add,
		Major: 179, Minor: 0, NParts: 0,
	}))
	dv.Lock()
	dv.SetState(volume.Mounted)
	dv.Unlock()

	require.NoError(t, mgr.DispatchEvent(context.Background(), event.BlockEvent{
		DevPath: "/devices/platform/sdcard1/block/mmcblk0", DevType: event.Disk, Action: event.Change,
		Major: 179, Minor: 0,
	}))

	require.Equal(t, float64(1), prommetrics.ToFloat64(reg.VolumesByState.WithLabelValues("Mounted")))
	require.Equal(t, float64(0), prommetrics.ToFloat64(reg.VolumesByState.WithLabelValues("NoMedia")))
}

func TestManager_DispatchEvent_NoMatchIsNotAnError(t *testing.T) {
	mgr, _, _ := newTestManager(t, "sdcard1")

	err := mgr.DispatchEvent(context.Background(), event.BlockEvent{
		DevPath: "/devices/platform/unrelated/block/sda", DevType: event.Disk, Action: event.Add,
		Major: 8, Minor: 0,
	})
	require.NoError(t, err)
}

func TestManager_Share_RequiresIdle(t *testing.T) {
	mgr, _, _ := newTestManager(t, "sdcard1")

	err := mgr.Share("sdcard1", "ums")
	require.NotNil(t, err)
}

func TestManager_ShareUnshare_RoundTrip(t *testing.T) {
	mgr, _, dvs := newTestManager(t, "sdcard1")
	dvs[0].Lock()
	dvs[0].SetState(volume.Idle)
	dvs[0].Unlock()

	require.Nil(t, mgr.Share("sdcard1", "ums"))
	require.Equal(t, volume.Shared, dvs[0].State())

	require.Nil(t, mgr.Unshare("sdcard1", "ums"))
	require.Equal(t, volume.Idle, dvs[0].State())
}

func TestManager_Unshare_RejectsWhenNotShared(t *testing.T) {
	mgr, _, _ := newTestManager(t, "sdcard1")
	err := mgr.Unshare("sdcard1", "ums")
	require.NotNil(t, err)
}

func TestManager_StorageType(t *testing.T) {
	mgr, _, dvs := newTestManager(t, "sdcard1")
	st := mgr.StorageType(dvs[0], "/devices/platform/sdcard1/block/mmcblk0")
	require.Equal(t, 1, st)

	require.Equal(t, 0, mgr.StorageType(dvs[0], "/devices/platform/other"))
}

func TestManager_CleanupASEC_UnknownVolume(t *testing.T) {
	mgr, _, _ := newTestManager(t, "sdcard1")
	require.NotNil(t, mgr.CleanupASEC("nope", false))
	require.Nil(t, mgr.CleanupASEC("sdcard1", false))
}
