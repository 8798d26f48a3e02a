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
	"strings"

	"github.com/go-restruct/restruct"
)

// bpb is the BIOS Parameter Block common to FAT12/16/32 boot sectors,
// unpacked with struct-tag driven binary decoding rather than field-by-
// field binary.Read calls (spec.md §4.1 "FAT info extraction").
type bpb struct {
	Jump              [3]byte
	OEMName           [8]byte
	BytesPerSector    uint16
	SectorsPerCluster uint8
	ReservedSectors   uint16
	NumFATs           uint8
	RootEntryCount    uint16
	TotalSectors16    uint16
	MediaType         uint8
	FATSize16         uint16
	SectorsPerTrack   uint16
	NumHeads          uint16
	HiddenSectors     uint32
	TotalSectors32    uint32

	// FAT32-only extension
	FATSize32      uint32
	ExtFlags       uint16
	FSVersion      uint16
	RootCluster    uint32
	FSInfoSector   uint16
	BackupBootSect uint16
	Reserved       [12]byte
	DriveNumber    uint8
	Reserved1      uint8
	BootSignature  uint8
	VolumeID32     [4]byte
	VolumeLabel32  [11]byte
	FSType32       [8]byte
}

const bootSectorSize = 512

// offsets into the boot sector that differ between FAT16 and FAT32 layouts.
const (
	fat16VolumeIDOffset    = 0x27
	fat16VolumeLabelOffset = 0x2B
	fat32VolumeIDOffset    = 0x43
	fat32VolumeLabelOffset = 0x47
)

// probeFAT is the unconditional fallback probe (spec.md §4.1): FAT has no
// reliable magic, so a match is "the BPB parses and is self-consistent".
func probeFAT(r io.ReaderAt) (Info, bool, error) {
	buf := make([]byte, bootSectorSize)
	if _, err := r.ReadAt(buf, 0); err != nil && err != io.EOF {
		return Info{}, false, err
	}

	fat, err := parseFAT(r, buf)
	if err != nil {
		return Info{}, false, nil // not a FAT volume; not an I/O error
	}
	return *fat, true, nil
}

// parseFAT parses a 512-byte boot sector into FAT volume Info, validating
// bytes_per_sector and distinguishing FAT16 from FAT32 by root_entry_count.
// r is the same reader the boot sector itself came from, used to walk the
// FAT32 root directory for a volume-label entry.
func parseFAT(r io.ReaderAt, data []byte) (*Info, error) {
	if len(data) != bootSectorSize {
		return nil, io.ErrShortBuffer
	}

	var b bpb
	if err := restruct.Unpack(data, binary.LittleEndian, &b); err != nil {
		return nil, err
	}

	if !isPowerOfTwo(b.BytesPerSector) || b.BytesPerSector == 0 {
		return nil, errNotFAT("bytes_per_sector must be a positive power of two")
	}

	isFAT32 := b.RootEntryCount == 0

	totalSectors := uint64(b.TotalSectors16)
	if totalSectors == 0 {
		totalSectors = uint64(b.TotalSectors32)
	}
	if totalSectors == 0 {
		return nil, errNotFAT("zero total sectors")
	}

	var serial uint32
	var label string
	if isFAT32 {
		serial = binary.LittleEndian.Uint32(b.VolumeID32[:])
		label = fat32RootLabel(r, &b)
		if label == "" {
			label = trimFATLabel(b.VolumeLabel32[:])
		}
	} else {
		serial = binary.LittleEndian.Uint32(data[fat16VolumeIDOffset : fat16VolumeIDOffset+4])
		label = trimFATLabel(data[fat16VolumeLabelOffset : fat16VolumeLabelOffset+11])
	}

	return &Info{
		FSType:    FAT,
		Label:     label,
		SerialID:  serial,
		SizeBytes: totalSectors * uint64(b.BytesPerSector),
	}, nil
}

// fat32RootLabel searches the root directory for an entry with attribute
// 0x08 (ATTR_VOLUME). Only the first cluster of the root directory is read;
// later clusters of its chain are not followed, so a label entry stored
// beyond the first cluster is not found.
// Returns "" if the cluster can't be read or no such entry exists, in which
// case the caller falls back to the BPB label field.
func fat32RootLabel(r io.ReaderAt, b *bpb) string {
	if b.SectorsPerCluster == 0 || b.NumFATs == 0 || b.RootCluster < 2 {
		return ""
	}

	fatAreaSectors := uint64(b.NumFATs) * uint64(b.FATSize32)
	firstDataSector := uint64(b.ReservedSectors) + fatAreaSectors
	rootDirSector := firstDataSector + (uint64(b.RootCluster)-2)*uint64(b.SectorsPerCluster)

	clusterBytes := uint64(b.SectorsPerCluster) * uint64(b.BytesPerSector)
	buf := make([]byte, clusterBytes)
	off := int64(rootDirSector) * int64(b.BytesPerSector)
	if _, err := r.ReadAt(buf, off); err != nil && err != io.EOF {
		return ""
	}

	const direntSize = 32
	const attrVolumeID = 0x08
	for pos := 0; pos+direntSize <= len(buf); pos += direntSize {
		entry := buf[pos : pos+direntSize]
		if entry[0] == 0x00 {
			break // no more entries
		}
		if entry[0] == 0xE5 {
			continue // deleted entry
		}
		if entry[11] == attrVolumeID {
			return trimFATLabel(entry[0:11])
		}
	}
	return ""
}

func trimFATLabel(raw []byte) string {
	s := strings.TrimRight(string(raw), " ")
	return strings.ReplaceAll(s, " ", "_")
}

func isPowerOfTwo(v uint16) bool {
	return v != 0 && v&(v-1) == 0
}

type fatError string

func (e fatError) Error() string { return string(e) }

func errNotFAT(msg string) error { return fatError(msg) }
