package volume_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deviceos-project/vold/internal/event"
	"github.com/deviceos-project/vold/internal/fstab"
	"github.com/deviceos-project/vold/internal/vlog"
	"github.com/deviceos-project/vold/internal/volume"
)

func newTestVolume(t *testing.T) (*volume.Volume, *event.Sink) {
	t.Helper()
	sink := event.NewSink()
	log := vlog.New(&discardWriter{}, vlog.ErrorLevel)
	rec := fstab.Record{Label: "sdcard1", MountPoint: "auto", FSType: "auto", BlkDevice: "/devices/sdcard"}
	return volume.New(rec, log, sink), sink
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestVolume_InitialState(t *testing.T) {
	v, _ := newTestVolume(t)
	require.Equal(t, volume.NoMedia, v.State())
}

func TestVolume_SetState_Broadcasts(t *testing.T) {
	v, sink := newTestVolume(t)

	v.Lock()
	v.SetState(volume.Idle)
	v.Unlock()

	require.Equal(t, volume.Idle, v.State())
	last, ok := sink.Last()
	require.True(t, ok)
	require.Equal(t, event.VolumeStateChange, last.Code)
}

func TestVolume_SetState_NoOpOnSameState(t *testing.T) {
	v, sink := newTestVolume(t)

	v.Lock()
	v.SetState(volume.Idle)
	sink.Reset()
	v.SetState(volume.Idle)
	v.Unlock()

	require.Empty(t, sink.All())
}

func TestVolume_SetState_ClearsRetryMountOnNonIdleExitFromPending(t *testing.T) {
	v, _ := newTestVolume(t)

	v.Lock()
	v.SetState(volume.Idle)
	v.SetState(volume.Pending)
	v.RetryMount = true
	v.SetState(volume.Checking)
	v.Unlock()

	require.False(t, v.RetryMount)
}

func TestVolume_SetState_PreservesRetryMountOnPendingToIdle(t *testing.T) {
	v, _ := newTestVolume(t)

	v.Lock()
	v.SetState(volume.Idle)
	v.SetState(volume.Pending)
	v.RetryMount = true
	v.SetState(volume.Idle)
	v.Unlock()

	require.True(t, v.RetryMount)
}

func TestVolume_SetUUID_BroadcastsOnChangeOnly(t *testing.T) {
	v, sink := newTestVolume(t)

	v.SetUUID("1234ABCD")
	last, ok := sink.Last()
	require.True(t, ok)
	require.Equal(t, event.VolumeUuidChange, last.Code)

	sink.Reset()
	v.SetUUID("1234ABCD")
	require.Empty(t, sink.All())

	v.SetUUID("")
	last, ok = sink.Last()
	require.True(t, ok)
	require.Equal(t, event.VolumeUuidChange, last.Code)
}

func TestVolume_SetUserLabel_BroadcastsOnChangeOnly(t *testing.T) {
	v, sink := newTestVolume(t)

	v.SetUserLabel("MYCARD")
	last, ok := sink.Last()
	require.True(t, ok)
	require.Equal(t, event.VolumeUserLabelChange, last.Code)

	sink.Reset()
	v.SetUserLabel("MYCARD")
	require.Empty(t, sink.All())
}

func TestVolume_RemovingFlag(t *testing.T) {
	v, _ := newTestVolume(t)

	v.Lock()
	require.False(t, v.Removing())
	v.SetRemoving(true)
	require.True(t, v.Removing())
	v.Unlock()
}

func TestState_String(t *testing.T) {
	require.Equal(t, "Idle", volume.Idle.String())
	require.Equal(t, "Mounted", volume.Mounted.String())
	require.Equal(t, "Unknown", volume.State(99).String())
}
