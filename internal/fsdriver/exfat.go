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

// ExFAT wraps the external exFAT utilities. Check is advisory here: a
// failed check never blocks mount, since the kernel exFAT driver (or FUSE
// exfat-fuse) is robust enough to mount a dirty volume (spec.md §4.2).
type ExFAT struct {
	FsckPath string
	MkfsPath string
}

func NewExFAT() *ExFAT {
	return &ExFAT{FsckPath: "fsck.exfat", MkfsPath: "mkfs.exfat"}
}

func (d *ExFAT) Check(path string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, d.FsckPath, path)
	if err := cmd.Run(); err != nil {
		return verr.Wrap(verr.NotSupported, err, "advisory exfat check failed on %s", path)
	}
	return nil
}

func (d *ExFAT) Mount(path, mountpoint string, opts MountOpts) error {
	data := exfatOptionString(opts)
	return unixMount(path, mountpoint, "exfat", data, opts)
}

func (d *ExFAT) Format(path string, numSectors uint64, wholeDevice bool) error {
	if wholeDevice {
		if err := eraseAndRereadPartitionTable(path); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cmd := exec.CommandContext(ctx, d.MkfsPath, path)
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

func exfatOptionString(opts MountOpts) string {
	return fmt.Sprintf("utf8,uid=%d,gid=%d,fmask=%04o,dmask=%04o",
		opts.UID, opts.GID, mask(opts.FMask, opts.WorldWritable), mask(opts.DMask, opts.WorldWritable))
}
