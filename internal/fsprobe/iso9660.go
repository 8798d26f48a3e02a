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
	"io"
	"strings"
)

const (
	iso9660SystemAreaSectors = 16
	iso9660SectorSize        = 2048
	isoStandardID            = "CD001"
	isoVDTypePrimary         = 1
)

// ProbeISO9660 looks for the primary volume descriptor at sector 16
// (spec.md §4.1). It is not part of Probe's HFS+/NTFS/exFAT/FAT chain, and
// the mount pipeline does not call it.
func ProbeISO9660(r io.ReaderAt) (Info, bool, error) {
	buf := make([]byte, iso9660SectorSize)
	off := int64(iso9660SystemAreaSectors) * iso9660SectorSize
	if _, err := r.ReadAt(buf, off); err != nil && err != io.EOF {
		return Info{}, false, err
	}

	if buf[0] != isoVDTypePrimary {
		return Info{}, false, nil
	}
	if string(buf[1:6]) != isoStandardID {
		return Info{}, false, nil
	}
	if buf[6] != 1 {
		return Info{}, false, nil
	}

	label := strings.TrimRight(string(buf[40:72]), " ")

	return Info{
		FSType: ISO9660,
		Label:  label,
	}, true, nil
}
