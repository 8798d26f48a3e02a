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

// Package blockdev wraps raw block-device I/O: opening /dev/block/vold node
// paths, querying sector size and real size via ioctl, memory-mapping
// large regions for callers that want one, and the mount(2)/umount2(2)/
// mknod(2) syscalls the mount pipeline drives directly.
package blockdev

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// DefaultSectorSize is assumed when a device's logical block size can't be
// determined (e.g. a regular file backing a loop device).
const DefaultSectorSize = 512

// Device is an opened block device or backing regular file.
type Device struct {
	Path       string
	SectorSize int64
	Size       int64
	IsBlock    bool

	file *os.File
}

// Open opens path read-only and queries its geometry. Callers that need
// read-write access (format, repair) use OpenRW.
func Open(path string) (*Device, error) {
	return open(path, os.O_RDONLY)
}

// OpenRW opens path read-write.
func OpenRW(path string) (*Device, error) {
	return open(path, os.O_RDWR)
}

func open(path string, flag int) (*Device, error) {
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, fmt.Errorf("blockdev: open %s: %w", path, err)
	}

	d := &Device{Path: path, SectorSize: DefaultSectorSize, file: f}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("blockdev: stat %s: %w", path, err)
	}
	d.IsBlock = fi.Mode()&os.ModeDevice != 0 && fi.Mode()&os.ModeCharDevice == 0

	if d.IsBlock {
		if sz, err := ioctlSectorSize(f); err == nil && sz > 0 {
			d.SectorSize = sz
		}
		if sz, err := ioctlDiskSize(f); err == nil && sz > 0 {
			d.Size = sz
		} else if sz, err := f.Seek(0, io.SeekEnd); err == nil {
			d.Size = sz
		}
	} else {
		d.Size = fi.Size()
	}

	return d, nil
}

func (d *Device) Close() error {
	if d.file == nil {
		return nil
	}
	return d.file.Close()
}

func (d *Device) ReadAt(p []byte, off int64) (int, error) { return d.file.ReadAt(p, off) }
func (d *Device) WriteAt(p []byte, off int64) (int, error) { return d.file.WriteAt(p, off) }
func (d *Device) Fd() uintptr                              { return d.file.Fd() }

// ioctlSectorSize issues BLKSSZGET to retrieve the logical sector size.
func ioctlSectorSize(f *os.File) (int64, error) {
	sz, err := unix.IoctlGetInt(int(f.Fd()), unix.BLKSSZGET)
	if err != nil {
		return 0, err
	}
	return int64(sz), nil
}

// ioctlDiskSize issues BLKGETSIZE64 to retrieve the device's total size.
func ioctlDiskSize(f *os.File) (int64, error) {
	sz, err := unix.IoctlGetUint64(int(f.Fd()), unix.BLKGETSIZE64)
	if err != nil {
		return 0, err
	}
	return int64(sz), nil
}

// Rereadpt forces the kernel to re-read the partition table (BLKRRPART),
// used by the format pipeline after erasing the MBR and again after
// running mkfs (spec.md §4.2 "Format").
func (d *Device) Rereadpt() error {
	if err := unix.IoctlSetInt(int(d.file.Fd()), unix.BLKRRPART, 0); err != nil {
		return fmt.Errorf("blockdev: BLKRRPART %s: %w", d.Path, err)
	}
	return nil
}

// EraseMBR overwrites the first 512 bytes of a whole-device format target
// (spec.md §4.2 "Format", whole-device format first erases the MBR).
func EraseMBR(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("blockdev: open %s for mbr erase: %w", path, err)
	}
	defer f.Close()

	zero := make([]byte, 512)
	if _, err := f.WriteAt(zero, 0); err != nil {
		return fmt.Errorf("blockdev: erase mbr on %s: %w", path, err)
	}
	return nil
}
