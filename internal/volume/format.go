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
package volume

import (
	"github.com/deviceos-project/vold/internal/fsdriver"
	"github.com/deviceos-project/vold/internal/fsprobe"
	"github.com/deviceos-project/vold/internal/mountutil"
	"github.com/deviceos-project/vold/internal/verr"
)

// FormatTarget is what the caller (DirectVolume) supplies about the device
// node a format_req targets: its path, whether it's the whole disk or a
// single partition, and its size for the exFAT-vs-FAT gate (spec.md §4.3.4,
// §4.2 "exFAT size gate").
type FormatTarget struct {
	Path        string
	WholeDevice bool
	SizeBytes   uint64
	NumSectors  uint64
}

// Format runs the format pipeline (spec.md §4.3.4). Precondition:
// v.State() == Idle and the mountpoint is not mounted.
func (p Pipeline) Format(v *Volume, target FormatTarget, requestedFSType string) *verr.Error {
	v.Lock()
	defer v.Unlock()

	if v.state != Idle {
		return verr.New(verr.Invariant, "volume %s is not idle (state %s)", v.Label, v.state)
	}
	if v.MountPoint != "" {
		if mounted, _ := mountutil.IsMounted(v.MountPoint); mounted {
			return verr.New(verr.Busy, "volume %s mountpoint %s is mounted", v.Label, v.MountPoint)
		}
	}

	v.SetState(Formatting)

	driver, fsType := p.chooseFormatDriver(target, requestedFSType)
	if err := driver.Format(target.Path, target.NumSectors, target.WholeDevice); err != nil {
		v.Log().Warnf("volume %s: format %s as %s: %v", v.Label, target.Path, fsType, err)
		v.SetState(Idle)
		return verr.Wrap(verr.IOError, err, "format %s for volume %s", target.Path, v.Label)
	}

	// Format pipeline returns to Idle regardless of outcome (spec.md
	// §4.3.4); the race window where a reload concurrently fails is
	// logged but never blocks returning to Idle.
	v.SetState(Idle)
	return nil
}

// chooseFormatDriver picks exFAT for a whole-device target in the SDXC size
// range, NTFS when explicitly requested, and FAT otherwise (spec.md §4.3.4,
// §4.2 "exFAT size gate").
func (p Pipeline) chooseFormatDriver(target FormatTarget, requestedFSType string) (fsdriver.Driver, string) {
	if requestedFSType == "ntfs" {
		if d, ok := p.Drivers[fsprobe.NTFS]; ok {
			return d, "ntfs"
		}
	}
	if target.WholeDevice && fsdriver.CheckSizeExFAT(target.SizeBytes) {
		if d, ok := p.Drivers[fsprobe.ExFAT]; ok {
			return d, "exfat"
		}
	}
	return p.Drivers[fsprobe.FAT], "fat"
}
