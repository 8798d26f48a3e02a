package vlog_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deviceos-project/vold/internal/vlog"
)

func TestLogger_LevelGating(t *testing.T) {
	var buf bytes.Buffer
	log := vlog.New(&buf, vlog.WarnLevel)

	log.Debug("should not appear")
	log.Info("should not appear either")
	log.Warn("a warning")
	log.Error("an error")

	out := buf.String()
	require.NotContains(t, out, "should not appear")
	require.Contains(t, out, "[WARN] a warning")
	require.Contains(t, out, "[ERROR] an error")
}

func TestLogger_Formatted(t *testing.T) {
	var buf bytes.Buffer
	log := vlog.New(&buf, vlog.DebugLevel)

	log.Infof("volume %s mounted at %s", "sdcard1", "/mnt/sdcard1")
	require.Contains(t, buf.String(), "volume sdcard1 mounted at /mnt/sdcard1")
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, vlog.DebugLevel, vlog.ParseLevel("DEBUG"))
	require.Equal(t, vlog.WarnLevel, vlog.ParseLevel("WARN"))
	require.Equal(t, vlog.ErrorLevel, vlog.ParseLevel("ERROR"))
	require.Equal(t, vlog.InfoLevel, vlog.ParseLevel("garbage"))
}

func TestLevel_String(t *testing.T) {
	require.Equal(t, "INFO", vlog.InfoLevel.String())
	require.Equal(t, "UNKNOWN", vlog.Level(99).String())
}
