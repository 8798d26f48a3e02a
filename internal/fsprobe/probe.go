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

// Package fsprobe implements the bit-exact on-disk superblock readers used
// to identify a filesystem and extract its label, serial id, and logical
// size (spec.md §4.1). Each probe opens the device read-only, seeks to a
// known offset, and reads a small fixed-size header; an I/O error is a
// failure, but "not this filesystem" is not.
package fsprobe

import (
	"io"

	"github.com/dsoprea/go-logging"
)

// FSType identifies a detected filesystem.
type FSType string

const (
	HFSPlus FSType = "hfsplus"
	NTFS    FSType = "ntfs"
	ExFAT   FSType = "exfat"
	FAT     FSType = "fat"
	ISO9660 FSType = "iso9660"
	Unknown FSType = ""
)

// Info is what a probe extracts on a match.
type Info struct {
	FSType   FSType
	Label    string
	SerialID uint32
	SizeBytes uint64
}

// Probe detects the filesystem on r (of total size sizeBytes), trying each
// probe in the fixed order HFS+ -> NTFS -> exFAT -> FAT (spec.md §4.1). It
// returns (info, true, nil) on a match, (zero, false, nil) when nothing
// recognized the device, and (zero, false, err) on I/O error.
func Probe(r io.ReaderAt, sizeBytes int64) (Info, bool, error) {
	if info, ok, err := probeHFSPlus(r); err != nil {
		return Info{}, false, log.Wrap(err)
	} else if ok {
		info.SizeBytes = uint64(sizeBytes)
		return info, true, nil
	}

	if info, ok, err := probeNTFS(r); err != nil {
		return Info{}, false, log.Wrap(err)
	} else if ok {
		return info, true, nil
	}

	if info, ok, err := probeExFATMagic(r); err != nil {
		return Info{}, false, log.Wrap(err)
	} else if ok {
		return info, true, nil
	}

	if info, ok, err := probeFAT(r); err != nil {
		return Info{}, false, log.Wrap(err)
	} else if ok {
		return info, true, nil
	}

	return Info{}, false, nil
}
