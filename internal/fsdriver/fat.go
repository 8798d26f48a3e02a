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
	"strconv"
	"time"

	"github.com/deviceos-project/vold/internal/blockdev"
	"github.com/deviceos-project/vold/internal/verr"
)

// FAT is the vfat driver: external dosfsck for check, the kernel vfat
// module for mount, mkfs.vfat for format (spec.md §4.2).
type FAT struct {
	FsckPath string
	MkfsPath string
}

func NewFAT() *FAT {
	return &FAT{FsckPath: "fsck.fat", MkfsPath: "mkfs.vfat"}
}

// Check runs fsck.fat -p. Exit codes {0,2,4} mean OK, possibly with a
// benign repair; 1 or 8 mean corruption was found and fixed, so the check
// is run once more and passes only if that second run exits OK; anything
// else is a hard failure (spec.md §4.2).
func (d *FAT) Check(path string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, d.FsckPath, "-p", "-w", "-r", path)
	err := cmd.Run()
	if err == nil {
		return nil
	}

	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		return verr.Wrap(verr.IOError, err, "run %s on %s", d.FsckPath, path)
	}

	switch exitErr.ExitCode() {
	case 0, 2, 4:
		return nil
	case 1, 8:
		// Corruption was found and fixed: run the check once more.
		retryCtx, retryCancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer retryCancel()
		retryErr := exec.CommandContext(retryCtx, d.FsckPath, "-p", "-w", "-r", path).Run()
		if retryErr == nil {
			return nil
		}
		if retryExit, ok := retryErr.(*exec.ExitError); ok {
			switch retryExit.ExitCode() {
			case 0, 2, 4:
				return nil
			}
		}
		return verr.Wrap(verr.CorruptFS, err, "%s found repairable corruption on %s", d.FsckPath, path)
	default:
		return verr.Wrap(verr.CorruptFS, err, "%s failed on %s (exit %d)", d.FsckPath, path, exitErr.ExitCode())
	}
}

func (d *FAT) Mount(path, mountpoint string, opts MountOpts) error {
	data := fatOptionString(opts)
	return unixMount(path, mountpoint, "vfat", data, opts)
}

func (d *FAT) Format(path string, numSectors uint64, wholeDevice bool) error {
	if wholeDevice {
		if err := eraseAndRereadPartitionTable(path); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	args := []string{"-F", fatBitsFor(numSectors), path}
	if numSectors > 0 {
		args = append(args, strconv.FormatUint(numSectors, 10))
	}
	cmd := exec.CommandContext(ctx, d.MkfsPath, args...)
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

// fatBitsFor picks FAT16 vs FAT32 the way mkfs.vfat's own heuristic does:
// small volumes get FAT16, everything else FAT32.
func fatBitsFor(numSectors uint64) string {
	const fat16SectorCeiling = 1_048_576 // ~512MiB at 512B sectors
	if numSectors > 0 && numSectors <= fat16SectorCeiling {
		return "16"
	}
	return "32"
}

// fatOptionString builds utf8,uid=U,gid=G,fmask=M,dmask=M (spec.md §4.2,
// §6), applying the world-writable mask override.
func fatOptionString(opts MountOpts) string {
	return fmt.Sprintf("utf8,uid=%d,gid=%d,fmask=%04o,dmask=%04o",
		opts.UID, opts.GID, mask(opts.FMask, opts.WorldWritable), mask(opts.DMask, opts.WorldWritable))
}

func eraseAndRereadPartitionTable(path string) error {
	if err := blockdev.EraseMBR(path); err != nil {
		return err
	}
	return rereadPartitionTable(path)
}

// rereadPartitionTable opens path to issue BLKRRPART, then closes it
// again; the mount pipeline doesn't keep the device open between steps.
func rereadPartitionTable(path string) error {
	dev, err := blockdev.OpenRW(path)
	if err != nil {
		return err
	}
	defer dev.Close()
	return dev.Rereadpt()
}
