package verr_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/deviceos-project/vold/internal/verr"
)

func TestNew_Error(t *testing.T) {
	err := verr.New(verr.Busy, "volume %s busy", "sdcard1")
	require.EqualError(t, err, "busy: volume sdcard1 busy")
}

func TestWrap_UnwrapsCause(t *testing.T) {
	cause := errors.New("device gone")
	err := verr.Wrap(verr.IOError, cause, "mount failed")
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "device gone")
}

func TestIs(t *testing.T) {
	err := verr.New(verr.CorruptFS, "bad superblock")
	require.True(t, verr.Is(err, verr.CorruptFS))
	require.False(t, verr.Is(err, verr.Busy))
	require.False(t, verr.Is(errors.New("plain"), verr.Busy))
}

func TestKind_Errno(t *testing.T) {
	cases := map[verr.Kind]unix.Errno{
		verr.NoMedia:      unix.ENODEV,
		verr.Busy:         unix.EBUSY,
		verr.NotSupported: unix.ENOTSUP,
		verr.CorruptFS:    unix.EIO,
		verr.IOError:      unix.EIO,
		verr.Invariant:    unix.EINVAL,
		verr.NoSpace:      unix.ERANGE,
	}
	for kind, want := range cases {
		require.Equal(t, want, kind.Errno())
	}
}

func TestKind_String(t *testing.T) {
	require.Equal(t, "busy", verr.Busy.String())
	require.Equal(t, "unknown", verr.Kind(99).String())
}
