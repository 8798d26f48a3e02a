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
package blockdev

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// MountFlags mirrors the common mount(2) flags the FS drivers combine
// (spec.md §4.2 "Mount options common to FAT/exFAT/NTFS").
type MountFlags uintptr

const (
	FlagNoDev    MountFlags = unix.MS_NODEV
	FlagNoSuid   MountFlags = unix.MS_NOSUID
	FlagDirSync  MountFlags = unix.MS_DIRSYNC
	FlagNoExec   MountFlags = unix.MS_NOEXEC
	FlagReadOnly MountFlags = unix.MS_RDONLY
	FlagRemount  MountFlags = unix.MS_REMOUNT
)

// Mount wraps mount(2).
func Mount(source, target, fstype string, flags MountFlags, data string) error {
	if err := unix.Mount(source, target, fstype, uintptr(flags), data); err != nil {
		return fmt.Errorf("blockdev: mount %s -> %s (%s): %w", source, target, fstype, err)
	}
	return nil
}

// BindMount bind-mounts source onto target (spec.md §4.3.2 step g, the
// secure-container bind; also used for multi-mount sub-partition fan-out).
func BindMount(source, target string) error {
	if err := unix.Mount(source, target, "", unix.MS_BIND, ""); err != nil {
		return fmt.Errorf("blockdev: bind mount %s -> %s: %w", source, target, err)
	}
	return nil
}

// Unmount wraps umount2(2). With force set it passes MNT_DETACH (lazy
// unmount), the mode the unmount pipeline uses once retries are exhausted
// (spec.md §4.3.3); without it, it is a plain unmount.
func Unmount(target string, force bool) error {
	var flags int
	if force {
		flags = unix.MNT_DETACH
	}
	if err := unix.Unmount(target, flags); err != nil {
		return fmt.Errorf("blockdev: unmount %s: %w", target, err)
	}
	return nil
}

// MknodBlock creates /dev/block/vold/<major>:<minor> with mode 0660 and
// the block-device type bit set. Callers tolerate EEXIST: writes to
// /dev/block/vold/ are idempotent (spec.md §5).
func MknodBlock(path string, major, minor int) error {
	dev := unix.Mkdev(uint32(major), uint32(minor))
	err := unix.Mknod(path, unix.S_IFBLK|0660, int(dev))
	if err != nil && err != unix.EEXIST {
		return fmt.Errorf("blockdev: mknod %s (%d:%d): %w", path, major, minor, err)
	}
	return nil
}

// UnlinkNode removes a /dev/block/vold/<major>:<minor> node, tolerating
// ENOENT (spec.md §4.4.4, disk-removed unlinks every known node).
func UnlinkNode(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("blockdev: unlink %s: %w", path, err)
	}
	return nil
}

// Kill sends sig to pid, used by the busy-mountpoint escalation in the
// unmount pipeline (spec.md §4.3.3). Process discovery/enumeration itself
// (who holds files open under a mountpoint) is delegated to the
// process-killer collaborator named in spec.md §1; this is the primitive
// it's built on.
func Kill(pid int, sig unix.Signal) error {
	return unix.Kill(pid, sig)
}
