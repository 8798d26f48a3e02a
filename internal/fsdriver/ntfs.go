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
package fsdriver

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/deviceos-project/vold/internal/verr"
)

// NTFS runs ntfsfix for check and mkntfs for format, and mounts through
// mount(2) with the kernel ntfs driver; MountPath is not used by Mount.
// Like exFAT, check is advisory (spec.md §4.2).
type NTFS struct {
	FsckPath  string
	MountPath string
	MkfsPath  string
}

func NewNTFS() *NTFS {
	return &NTFS{FsckPath: "ntfsfix", MountPath: "ntfs-3g", MkfsPath: "mkntfs"}
}

func (d *NTFS) Check(path string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, d.FsckPath, "-n", path)
	if err := cmd.Run(); err != nil {
		return verr.Wrap(verr.NotSupported, err, "advisory ntfs check failed on %s", path)
	}
	return nil
}

// Mount uses the kernel ntfs module's option shape extended with `force`
// and `iocharset=utf8` (spec.md §4.2, §6).
func (d *NTFS) Mount(path, mountpoint string, opts MountOpts) error {
	data := ntfsOptionString(opts)
	return unixMount(path, mountpoint, "ntfs", data, opts)
}

func (d *NTFS) Format(path string, numSectors uint64, wholeDevice bool) error {
	if wholeDevice {
		if err := eraseAndRereadPartitionTable(path); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cmd := exec.CommandContext(ctx, d.MkfsPath, "-f", path)
	if out, err := cmd.CombinedOutput(); err != nil {
		return verr.Wrap(verr.IOError, err, "%s %s: %s", d.MkfsPath, path, string(out))
	}

	if wholeDevice {
		if err := rereadPartitionTable(path); err != nil {
			return err
		}
	}
	return nil
}

func ntfsOptionString(opts MountOpts) string {
	return fmt.Sprintf("utf8,uid=%d,gid=%d,fmask=%04o,dmask=%04o,iocharset=utf8,force",
		opts.UID, opts.GID, mask(opts.FMask, opts.WorldWritable), mask(opts.DMask, opts.WorldWritable))
}
