// Copyright (c) 2025 Stefano Scafiti
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
package fsprobe

import (
	"encoding/binary"
	"io"

	"github.com/go-restruct/restruct"
)

const (
	ntfsOEMIDOffset = 3
	ntfsOEMID       = "NTFS    "
)

// ntfsBPB is the NTFS boot sector layout from offset 0x0B onward, just
// enough to compute the volume size and read the 64-bit serial number at
// 0x48 (spec.md §4.1). NTFS stores no on-disk label in the boot sector
// itself — it lives in the $Volume metafile, which vold doesn't parse
// (read-only detection is all the spec requires).
type ntfsBPB struct {
	BytesPerSector    uint16
	SectorsPerCluster uint8
	ReservedSectors   uint16
	Pad0              [5]byte
	MediaType         uint8
	Pad1              [2]byte
	SectorsPerTrack   uint16
	NumHeads          uint16
	HiddenSectors     uint32
	Pad2              [8]byte
	TotalSectors      uint64
	MFTCluster        uint64
	MFTMirrCluster    uint64
	ClustersPerMFT    int8
	Pad3              [3]byte
	ClustersPerIndex  int8
	Pad4              [3]byte
	SerialNumber      uint64
}

// probeNTFS matches the "NTFS    " OEM id at offset 3 (spec.md §4.1) and
// extracts the 64-bit volume serial number, truncated to 32 bits to match
// the Info.SerialID field every other probe reports through.
func probeNTFS(r io.ReaderAt) (Info, bool, error) {
	buf := make([]byte, bootSectorSize)
	if _, err := r.ReadAt(buf, 0); err != nil && err != io.EOF {
		return Info{}, false, err
	}

	if string(buf[ntfsOEMIDOffset:ntfsOEMIDOffset+len(ntfsOEMID)]) != ntfsOEMID {
		return Info{}, false, nil
	}

	var b ntfsBPB
	if err := restruct.Unpack(buf[0x0B:], binary.LittleEndian, &b); err != nil {
		return Info{}, false, nil
	}
	if b.BytesPerSector == 0 {
		return Info{}, false, nil
	}

	return Info{
		FSType:    NTFS,
		Label:     "",
		SerialID:  uint32(b.SerialNumber),
		SizeBytes: b.TotalSectors * uint64(b.BytesPerSector),
	}, true, nil
}
