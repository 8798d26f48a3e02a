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

// Package fsdriver is the per-filesystem check/mount/format facade (spec.md
// §4.2): one Driver per supported filesystem, wrapping the external tools
// (fsck, mkfs) and the mount(2) syscall behind a uniform interface.
package fsdriver

import (
	"errors"

	"golang.org/x/sys/unix"

	"github.com/deviceos-project/vold/internal/blockdev"
	"github.com/deviceos-project/vold/internal/verr"
)

// SDXC size range used by the exFAT-vs-FAT factory-format gate (spec.md
// §4.2 "exFAT size gate").
const (
	sdxcMinBytes = 34_359_738_368
	sdxcMaxBytes = 2_199_023_255_552
)

// MountOpts carries the knobs every FAT-family driver's mount option
// string and flag set are built from (spec.md §4.2, §6).
type MountOpts struct {
	UID, GID     uint32
	FMask, DMask uint32
	ReadOnly     bool
	Remount      bool
	Executable   bool
	WorldWritable bool
}

// Driver is the uniform per-filesystem facade spec.md §4.2 names.
type Driver interface {
	// Check runs the filesystem's external checker against path. A
	// returned error that wraps verr.CorruptFS means the volume cannot be
	// mounted; any other error kind is advisory and mount may proceed.
	Check(path string) error

	// Mount mounts path at mountpoint with opts.
	Mount(path, mountpoint string, opts MountOpts) error

	// Format writes a fresh filesystem to path. numSectors is the target
	// partition size in 512-byte sectors. With wholeDevice set, the MBR is
	// erased and the partition table re-read (BLKRRPART) before mkfs, and
	// re-read again after; a partition-level format skips both steps.
	Format(path string, numSectors uint64, wholeDevice bool) error
}

// CheckSizeExFAT implements check_size(whole) (spec.md §4.2): true iff
// sizeBytes falls in the SDXC range, which selects exFAT over FAT at
// factory-format time.
func CheckSizeExFAT(sizeBytes uint64) bool {
	return sizeBytes >= sdxcMinBytes && sizeBytes <= sdxcMaxBytes
}

// mountFlags computes the common NODEV|NOSUID|DIRSYNC[,NOEXEC][,RDONLY]
// [,REMOUNT] flag set shared by FAT, exFAT and NTFS (spec.md §4.2).
func mountFlags(opts MountOpts) blockdev.MountFlags {
	flags := blockdev.FlagNoDev | blockdev.FlagNoSuid | blockdev.FlagDirSync
	if !opts.Executable {
		flags |= blockdev.FlagNoExec
	}
	if opts.ReadOnly {
		flags |= blockdev.FlagReadOnly
	}
	if opts.Remount {
		flags |= blockdev.FlagRemount
	}
	return flags
}

// unixMount performs the mount(2) call, retrying read-only if the
// filesystem driver rejects the initial attempt with EROFS (spec.md §4.2,
// "If the initial mount fails with read-only-media, retry with RDONLY").
func unixMount(source, target, fstype, data string, opts MountOpts) error {
	err := blockdev.Mount(source, target, fstype, mountFlags(opts), data)
	if err == nil {
		return nil
	}
	if !opts.ReadOnly && errors.Is(err, unix.EROFS) {
		opts.ReadOnly = true
		if roErr := blockdev.Mount(source, target, fstype, mountFlags(opts), data); roErr == nil {
			return nil
		}
	}
	return verr.Wrap(verr.IOError, err, "mount %s at %s (%s)", source, target, fstype)
}

// mask applies the world-writable override named in spec.md §4.2: "If a
// world-writable override property is active, mask is forced to 0."
func mask(m uint32, worldWritable bool) uint32 {
	if worldWritable {
		return 0
	}
	return m
}
