package volume

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deviceos-project/vold/internal/config"
	"github.com/deviceos-project/vold/internal/event"
	"github.com/deviceos-project/vold/internal/fsdriver"
	"github.com/deviceos-project/vold/internal/fsprobe"
	"github.com/deviceos-project/vold/internal/fstab"
	"github.com/deviceos-project/vold/internal/procwait"
	"github.com/deviceos-project/vold/internal/testutil"
	"github.com/deviceos-project/vold/internal/verr"
	"github.com/deviceos-project/vold/internal/vlog"
)

// refusingDriver reaches Mount and refuses every time, so a tryMount call
// stops right after the prepared-stage broadcast point without touching
// real mount(2) syscalls.
type refusingDriver struct{}

func (refusingDriver) Check(path string) error { return nil }
func (refusingDriver) Mount(path, mountpoint string, opts fsdriver.MountOpts) error {
	return verr.New(verr.IOError, "refusingDriver always refuses")
}
func (refusingDriver) Format(path string, numSectors uint64, wholeDevice bool) error {
	return verr.New(verr.IOError, "refusingDriver always refuses")
}

type singleNodeEnumerator struct{ path string }

func (e singleNodeEnumerator) EnumerateMountCandidates() ([]NodeRef, error) {
	return []NodeRef{{Major: 179, Minor: 1}}, nil
}
func (e singleNodeEnumerator) DevNodePath(major, minor int) string { return e.path }

type noopEnumerator struct{}

func (noopEnumerator) EnumerateMountCandidates() ([]NodeRef, error) { return nil, nil }
func (noopEnumerator) DevNodePath(major, minor int) string          { return "" }

func newGuardTestVolume() *Volume {
	log := vlog.New(discardWriter{}, vlog.ErrorLevel)
	rec := fstab.Record{Label: "sdcard1", MountPoint: "auto", FSType: "auto", BlkDevice: "/devices/sdcard"}
	return New(rec, log, nil)
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestPipeline_Mount_RejectsNoMedia(t *testing.T) {
	v := newGuardTestVolume()
	p := Pipeline{}

	err := p.Mount(v, noopEnumerator{})
	require.NotNil(t, err)
	require.Equal(t, verr.NoMedia, err.Kind)
}

func TestPipeline_Mount_RejectsRemoving(t *testing.T) {
	v := newGuardTestVolume()
	v.Lock()
	v.SetRemoving(true)
	v.Unlock()
	p := Pipeline{}

	err := p.Mount(v, noopEnumerator{})
	require.NotNil(t, err)
	require.Equal(t, verr.Busy, err.Kind)
}

func TestPipeline_Mount_LatchesRetryOnPending(t *testing.T) {
	v := newGuardTestVolume()
	v.Lock()
	v.SetState(Idle)
	v.SetState(Pending)
	v.Unlock()
	p := Pipeline{}

	err := p.Mount(v, noopEnumerator{})
	require.NotNil(t, err)
	require.Equal(t, verr.Busy, err.Kind)
	require.True(t, v.RetryMount)
}

func TestPipeline_Mount_NoCandidatesLeavesIdle(t *testing.T) {
	v := newGuardTestVolume()
	v.Lock()
	v.SetState(Idle)
	v.Unlock()
	p := Pipeline{}

	err := p.Mount(v, noopEnumerator{})
	require.NotNil(t, err)
	require.Equal(t, verr.IOError, err.Kind)
	require.Equal(t, Idle, v.State())
}

func TestPipeline_Unmount_RejectsWhenNotMounted(t *testing.T) {
	v := newGuardTestVolume()
	p := Pipeline{}

	err := p.Unmount(v, UnmountOptions{Killer: procwait.NoopKiller{}})
	require.NotNil(t, err)
	require.Equal(t, verr.Invariant, err.Kind)
}

func TestPipeline_Format_RejectsWhenNotIdle(t *testing.T) {
	v := newGuardTestVolume()
	p := Pipeline{Drivers: Drivers{}}

	err := p.Format(v, FormatTarget{Path: "/dev/nonexistent"}, "")
	require.NotNil(t, err)
	require.Equal(t, verr.Invariant, err.Kind)
}

func newPreparedStageTestVolume(t *testing.T, sink *event.Sink) (*Volume, string) {
	t.Helper()

	f, err := os.CreateTemp(t.TempDir(), "vold-fat32-*.img")
	require.NoError(t, err)
	defer f.Close()
	_, err = f.Write(testutil.FAT32BootSector(0x1234ABCD, "BIGCARD", 20_000_000))
	require.NoError(t, err)

	log := vlog.New(discardWriter{}, vlog.ErrorLevel)
	rec := fstab.Record{Label: "sdcard1", MountPoint: "auto", FSType: "auto", BlkDevice: "/devices/sdcard"}
	v := New(rec, log, sink)
	v.MountPoint = t.TempDir()
	v.FuseMountPoint = "/storage/sdcard1"
	return v, f.Name()
}

func TestPipeline_TryMount_PreparedStageBroadcastWhenEnabled(t *testing.T) {
	sink := event.NewSink()
	v, path := newPreparedStageTestVolume(t, sink)
	cfg := config.Default()
	cfg.PreparedStageBroadcast = true
	p := Pipeline{Cfg: cfg, Drivers: Drivers{fsprobe.FAT: refusingDriver{}}}

	mounted := p.tryMount(v, singleNodeEnumerator{path: path}, NodeRef{Major: 179, Minor: 1})
	require.False(t, mounted)

	found := false
	for _, b := range sink.All() {
		if b.Code == event.VolumeDiskPrepared {
			found = true
			require.Contains(t, b.Message, "disk prepared (179:1)")
			require.Contains(t, b.Message, "BIGCARD")
		}
	}
	require.True(t, found, "expected a VolumeDiskPrepared broadcast")
}

func TestPipeline_TryMount_PreparedStageBroadcastSuppressedWhenDisabled(t *testing.T) {
	sink := event.NewSink()
	v, path := newPreparedStageTestVolume(t, sink)
	cfg := config.Default()
	cfg.PreparedStageBroadcast = false
	p := Pipeline{Cfg: cfg, Drivers: Drivers{fsprobe.FAT: refusingDriver{}}}

	mounted := p.tryMount(v, singleNodeEnumerator{path: path}, NodeRef{Major: 179, Minor: 1})
	require.False(t, mounted)

	for _, b := range sink.All() {
		require.NotEqual(t, event.VolumeDiskPrepared, b.Code)
	}
}

func TestClassifyReadOnly(t *testing.T) {
	cfg := config.Default()

	require.False(t, classifyReadOnly("/storage/usb0", fsprobe.FAT, cfg))
	require.True(t, classifyReadOnly("/storage/usb0", fsprobe.NTFS, cfg))
	require.True(t, classifyReadOnly("/storage/sdcard0", fsprobe.FAT, cfg))
	require.True(t, classifyReadOnly("/mnt/cdrom", fsprobe.ISO9660, cfg))
	require.False(t, classifyReadOnly("/mnt/other", fsprobe.FAT, cfg))

	cfg.USBReadWriteFilesystems = append(cfg.USBReadWriteFilesystems, "ntfs")
	require.False(t, classifyReadOnly("/storage/usb0", fsprobe.NTFS, cfg))
}
