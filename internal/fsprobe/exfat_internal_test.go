package fsprobe

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseExFATToolOutput_OK(t *testing.T) {
	out := []byte(`File system version: 1.0
Volume name: "MyCard"
Volume serial number: 1234-ABCD
Volume length: 62258656 sectors (31876431872 bytes)
Filesystem is clean.
`)
	label, serial, sizeBytes, err := parseExFATToolOutput(out)
	require.NoError(t, err)
	require.Equal(t, "MyCard", label)
	require.Equal(t, uint32(0x1234ABCD), serial)
	require.Equal(t, uint64(31876431872), sizeBytes)
}

func TestParseExFATToolOutput_MalformedSerialIsFatal(t *testing.T) {
	out := []byte(`Volume name: "MyCard"
Volume serial number: not-a-hex-number
Volume length: 62258656 sectors (31876431872 bytes)
`)
	_, _, _, err := parseExFATToolOutput(out)
	require.Error(t, err)
}

func TestParseExFATToolOutput_MalformedLengthIsFatal(t *testing.T) {
	out := []byte(`Volume name: "MyCard"
Volume serial number: 1234-ABCD
Volume length: garbage
`)
	_, _, _, err := parseExFATToolOutput(out)
	require.Error(t, err)
}

func TestParseExFATToolOutput_NoMatchingLinesIsFine(t *testing.T) {
	label, serial, sizeBytes, err := parseExFATToolOutput([]byte("unrelated tool chatter\n"))
	require.NoError(t, err)
	require.Equal(t, "", label)
	require.Equal(t, uint32(0), serial)
	require.Equal(t, uint64(0), sizeBytes)
}
