package propstore_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deviceos-project/vold/internal/propstore"
)

func TestMemory_GetSet(t *testing.T) {
	m := propstore.NewMemory()
	require.Equal(t, "", m.Get(propstore.PropHardware))

	m.Set(propstore.PropHardware, "sdm660")
	require.Equal(t, "sdm660", m.Get(propstore.PropHardware))
}

func TestCtlStartStop(t *testing.T) {
	key, value := propstore.CtlStart("fuse_sdcard1")
	require.Equal(t, "ctl.start", key)
	require.Equal(t, "fuse_sdcard1", value)

	key, value = propstore.CtlStop("fuse_sdcard1")
	require.Equal(t, "ctl.stop", key)
	require.Equal(t, "fuse_sdcard1", value)
}

func TestMemory_ConcurrentAccess(t *testing.T) {
	m := propstore.NewMemory()
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			m.Set(propstore.PropCryptoState, "encrypted")
		}
		close(done)
	}()
	for i := 0; i < 100; i++ {
		m.Get(propstore.PropCryptoState)
	}
	<-done
}
