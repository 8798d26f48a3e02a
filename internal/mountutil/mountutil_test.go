package mountutil_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deviceos-project/vold/internal/mountutil"
)

func TestIsMounted_NotAMountpoint(t *testing.T) {
	mounted, err := mountutil.IsMounted(t.TempDir())
	require.NoError(t, err)
	require.False(t, mounted)
}

func TestMountsUnder_NoneFound(t *testing.T) {
	infos, err := mountutil.MountsUnder(t.TempDir())
	require.NoError(t, err)
	require.Empty(t, infos)
}
