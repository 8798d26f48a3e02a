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

// Package testutil builds synthetic filesystem superblocks in memory so
// fsprobe and the mount pipeline can be exercised without a real block
// device, mirroring the shape of the teacher's pkg/reader test fixtures.
package testutil

import (
	"encoding/binary"
	"io"
	"strings"
)

// SectorSize is the fixed logical sector size every builder assumes.
const SectorSize = 512

// FAT16BootSector returns a 512-byte FAT16 boot sector carrying serial and
// label at the offsets fsprobe.parseFAT expects (fat16VolumeIDOffset=0x27,
// fat16VolumeLabelOffset=0x2B), sized to hold numSectors logical sectors.
func FAT16BootSector(serial uint32, label string, numSectors uint32) []byte {
	buf := make([]byte, SectorSize)

	binary.LittleEndian.PutUint16(buf[11:13], SectorSize) // BytesPerSector
	buf[13] = 4                                           // SectorsPerCluster
	binary.LittleEndian.PutUint16(buf[14:16], 1)           // ReservedSectors
	buf[16] = 2                                            // NumFATs
	binary.LittleEndian.PutUint16(buf[17:19], 512)         // RootEntryCount != 0 => FAT16
	if numSectors <= 0xFFFF {
		binary.LittleEndian.PutUint16(buf[19:21], uint16(numSectors))
	} else {
		binary.LittleEndian.PutUint32(buf[32:36], numSectors)
	}
	buf[21] = 0xF8                                 // MediaType
	binary.LittleEndian.PutUint16(buf[22:24], 32)  // FATSize16

	binary.LittleEndian.PutUint32(buf[0x27:0x2B], serial)
	copy(buf[0x2B:0x2B+11], padFATLabel(label))

	buf[510], buf[511] = 0x55, 0xAA
	return buf
}

// FAT32BootSector returns a 512-byte FAT32 boot sector (RootEntryCount=0,
// serial/label at fat32VolumeIDOffset=0x43/fat32VolumeLabelOffset=0x47).
func FAT32BootSector(serial uint32, label string, numSectors uint32) []byte {
	buf := make([]byte, SectorSize)

	binary.LittleEndian.PutUint16(buf[11:13], SectorSize)
	buf[13] = 8                                   // SectorsPerCluster
	binary.LittleEndian.PutUint16(buf[14:16], 32)  // ReservedSectors
	buf[16] = 2                                    // NumFATs
	binary.LittleEndian.PutUint16(buf[17:19], 0)   // RootEntryCount == 0 => FAT32
	binary.LittleEndian.PutUint16(buf[19:21], 0)   // TotalSectors16 == 0
	buf[21] = 0xF8
	binary.LittleEndian.PutUint16(buf[22:24], 0)   // FATSize16 == 0, uses FATSize32
	binary.LittleEndian.PutUint32(buf[32:36], numSectors)

	binary.LittleEndian.PutUint32(buf[36:40], 0x3F8) // FATSize32
	binary.LittleEndian.PutUint32(buf[44:48], 2)     // RootCluster

	binary.LittleEndian.PutUint32(buf[0x43:0x47], serial)
	copy(buf[0x47:0x47+11], padFATLabel(label))

	buf[510], buf[511] = 0x55, 0xAA
	return buf
}

// FAT32ImageWithRootLabel returns a disk image carrying a FAT32 boot sector
// (serial and bpbLabel in the BPB fields, as FAT32BootSector) plus a root
// directory whose first cluster holds a single entry with attribute 0x08
// (ATTR_VOLUME) carrying rootLabel, for exercising fsprobe's root-directory
// volume-label walk as distinct from the BPB fallback label.
func FAT32ImageWithRootLabel(serial uint32, bpbLabel, rootLabel string, numSectors uint32) []byte {
	boot := FAT32BootSector(serial, bpbLabel, numSectors)

	const (
		reservedSectors   = 32
		numFATs           = 2
		fatSize32         = 0x3F8
		sectorsPerCluster = 8
	)
	firstDataSector := reservedSectors + numFATs*fatSize32
	rootDirOffset := firstDataSector * SectorSize
	clusterBytes := sectorsPerCluster * SectorSize

	buf := make([]byte, rootDirOffset+clusterBytes)
	copy(buf, boot)

	entry := buf[rootDirOffset : rootDirOffset+32]
	copy(entry[0:11], padFATLabel(rootLabel))
	entry[11] = 0x08 // ATTR_VOLUME

	return buf
}

// NTFSBootSector returns a 512-byte NTFS boot sector with OEM id "NTFS    "
// at offset 3 and the 64-bit volume serial at offset 0x48.
func NTFSBootSector(serial uint64, numSectors uint64) []byte {
	buf := make([]byte, SectorSize)

	copy(buf[3:11], "NTFS    ")
	binary.LittleEndian.PutUint16(buf[11:13], SectorSize) // BytesPerSector
	buf[13] = 8                                           // SectorsPerCluster
	binary.LittleEndian.PutUint64(buf[0x28:0x30], numSectors)
	binary.LittleEndian.PutUint64(buf[0x48:0x50], serial)

	buf[510], buf[511] = 0x55, 0xAA
	return buf
}

// ExFATBootSector returns a 512-byte exFAT boot sector with OEM id
// "EXFAT   " at offset 3, VolumeLength/BytesPerSectorShift/SerialNumber at
// the fixed exFAT offsets probeExFATMagic reads.
func ExFATBootSector(serial uint32, numSectors uint64, bytesPerSectorShift uint8) []byte {
	buf := make([]byte, SectorSize)

	copy(buf[3:11], "EXFAT   ")
	binary.LittleEndian.PutUint64(buf[64:72], 0)        // PartitionOffset
	binary.LittleEndian.PutUint64(buf[72:80], numSectors) // VolumeLength (in sectors)
	binary.LittleEndian.PutUint32(buf[100:104], serial)   // VolumeSerialNumber
	buf[108] = bytesPerSectorShift                        // BytesPerSectorShift

	return buf
}

// HFSPlusVolumeHeader returns a sizeBytes buffer with the "H+" signature at
// the fixed offset 1024 probeHFSPlus reads.
func HFSPlusVolumeHeader(sizeBytes int) []byte {
	buf := make([]byte, sizeBytes)
	copy(buf[1024:1026], "H+")
	return buf
}

// ISO9660PrimaryVolumeDescriptor returns a buffer with a primary volume
// descriptor ("CD001", type 1, version 1) at logical sector 16 carrying
// label in the volume-identifier field.
func ISO9660PrimaryVolumeDescriptor(label string) []byte {
	const sectorSize = 2048
	buf := make([]byte, 17*sectorSize)
	off := 16 * sectorSize

	buf[off] = 1
	copy(buf[off+1:off+6], "CD001")
	buf[off+6] = 1
	copy(buf[off+40:off+72], padRight(label, 32))
	return buf
}

func padFATLabel(label string) []byte {
	return []byte(padRight(strings.ToUpper(label), 11))
}

func padRight(s string, n int) string {
	if len(s) >= n {
		return s[:n]
	}
	return s + strings.Repeat(" ", n-len(s))
}

// ReaderAt wraps a byte slice so builders can be fed straight into
// io.ReaderAt-based probes without a real file or block device.
type ReaderAt struct {
	Data []byte
}

func (r *ReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(r.Data)) {
		return 0, io.EOF
	}
	n := copy(p, r.Data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
