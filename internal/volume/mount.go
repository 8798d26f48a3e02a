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
	"fmt"
	"os"
	"strings"

	"github.com/deviceos-project/vold/internal/blockdev"
	"github.com/deviceos-project/vold/internal/config"
	"github.com/deviceos-project/vold/internal/event"
	"github.com/deviceos-project/vold/internal/fsdriver"
	"github.com/deviceos-project/vold/internal/fsprobe"
	"github.com/deviceos-project/vold/internal/fstab"
	"github.com/deviceos-project/vold/internal/mountutil"
	"github.com/deviceos-project/vold/internal/propstore"
	"github.com/deviceos-project/vold/internal/verr"
)

// MaxMountPart caps the number of device-node candidates the mount
// pipeline will consider (spec.md §4.3.2 step 5).
const MaxMountPart = 16

// NodeRef identifies a block-device node by major:minor.
type NodeRef struct {
	Major, Minor int
}

// SubMount is one multi-mount fan-out partition bind-mounted under
// <mountpoint>/<label>{2,3,...} (spec.md §4.3.2 step i).
type SubMount struct {
	Mountpoint string
	DevPath    string
}

// DeviceEnumerator produces the candidate device nodes a mount attempt
// should try, in order (spec.md §4.3.2 step 3) — implemented by
// DirectVolume, which owns the disk/partition model Volume itself doesn't
// track.
type DeviceEnumerator interface {
	EnumerateMountCandidates() ([]NodeRef, error)
	DevNodePath(major, minor int) string
}

// Drivers resolves a detected filesystem to its C2 driver facade.
type Drivers map[fsprobe.FSType]fsdriver.Driver

// MountOptions carries the ownership/permission inputs the pipeline needs
// to build each driver's mount option string (spec.md §4.2, §6).
type MountOptions struct {
	UID, GID     uint32
	FMask, DMask uint32
	WorldWritable bool
}

// Pipeline bundles the mount pipeline's collaborators so the long
// parameter list doesn't have to be threaded through every call.
type Pipeline struct {
	Cfg     config.Config
	Props   propstore.Store
	Drivers Drivers
	Opts    MountOptions
}

// Mount runs the mount pipeline (spec.md §4.3.2) against v, using enum to
// discover candidate device nodes. Precondition: v.State() == Idle.
func (p Pipeline) Mount(v *Volume, enum DeviceEnumerator) *verr.Error {
	v.Lock()
	defer v.Unlock()

	// Step 1: removing guard.
	if v.Removing() {
		return verr.New(verr.Busy, "volume %s is being removed", v.Label)
	}

	switch v.state {
	case NoMedia:
		return verr.New(verr.NoMedia, "volume %s has no media", v.Label)
	case Pending:
		v.RetryMount = true
		return verr.New(verr.Busy, "volume %s mount pending partition events", v.Label)
	case Idle:
		// proceed
	default:
		return verr.New(verr.Busy, "volume %s is in state %s", v.Label, v.state)
	}

	// Step 2: known-kernel-race workaround — force-unmount an already
	// mounted mountpoint before trying again.
	if v.MountPoint != "" {
		if mounted, _ := mountutil.IsMounted(v.MountPoint); mounted {
			_ = blockdev.Unmount(v.MountPoint, true)
		}
	}

	// Step 3+5: enumerate and cap candidates.
	candidates, err := enum.EnumerateMountCandidates()
	if err != nil {
		return verr.Wrap(verr.IOError, err, "enumerate mount candidates for %s", v.Label)
	}
	if len(candidates) > MaxMountPart {
		candidates = candidates[:MaxMountPart]
	}

	// Step 4 (crypto setup for ENCRYPTABLE|NONREMOVABLE|PROVIDES_ASEC on an
	// encrypted boot) is out of scope (spec.md Non-goals: device-mapper
	// crypto implementation); callers needing it re-enumerate before
	// calling Mount.

	// Step 6: enter Checking and try each candidate in order.
	v.SetState(Checking)

	for i, node := range candidates {
		if mounted := p.tryMount(v, enum, node); mounted {
			// Step i: best-effort fan-out of the remaining candidates
			// under <mountpoint>/<label>{2,3,...} (spec.md §4.3.2).
			if p.Cfg.MultiMount {
				p.mountRemainder(v, enum, candidates[i+1:])
			}
			return nil
		}
		if v.state != Checking {
			// state drifted (e.g. concurrent removal) mid-loop; stop trying.
			break
		}
	}

	// Step 7: no candidate succeeded.
	if v.state == Checking {
		v.SetState(Idle)
	}
	return verr.New(verr.IOError, "no candidate partition mounted for volume %s", v.Label)
}

// tryMount attempts one candidate node end to end (spec.md §4.3.2 step 6
// a-k), returning true on success (volume left Mounted).
func (p Pipeline) tryMount(v *Volume, enum DeviceEnumerator, node NodeRef) bool {
	path := enum.DevNodePath(node.Major, node.Minor)

	dev, err := blockdev.Open(path)
	if err != nil {
		v.Log().Warnf("volume %s: open %s: %v", v.Label, path, err)
		return false
	}
	defer dev.Close()

	// a. detect filesystem.
	info, ok, err := fsprobe.Probe(dev, dev.Size)
	if err != nil {
		v.Log().Warnf("volume %s: probe %s: %v", v.Label, path, err)
		return false
	}
	if !ok {
		return false
	}

	// Prepared stage: optional pre-mount broadcast of filesystem identity,
	// before check/mount/classification have run (spec.md §4.6, §9
	// Glossary "Prepared stage").
	if p.Cfg.PreparedStageBroadcast {
		v.Broadcast(event.VolumeDiskPrepared, fmt.Sprintf("%s %s disk prepared (%d:%d) %s %s %08x",
			v.Label, v.FuseMountPoint, node.Major, node.Minor, devTypeLabel(v.MountPoint), info.Label, info.SerialID))
	}

	driver, ok := p.Drivers[info.FSType]
	if !ok {
		v.Log().Warnf("volume %s: no driver for fstype %s on %s", v.Label, info.FSType, path)
		return false
	}

	// b. check, unless disabled by config. A hard failure aborts this node.
	if !p.Cfg.FSChecksDisabled {
		if err := driver.Check(path); err != nil && verr.Is(err, verr.CorruptFS) {
			v.Log().Warnf("volume %s: check failed on %s: %v", v.Label, path, err)
			if v.state == Checking {
				v.SetState(Idle)
			}
			return false
		}
	}

	// c. decide read-only-ness from mountpoint classification.
	readOnly := classifyReadOnly(v.MountPoint, info.FSType, p.Cfg)

	// d. mkdir mountpoint (0007 normally, 0002 with NOFUSE).
	perm := os.FileMode(0007)
	if v.Record.Flags.Has(fstab.NoFUSE) {
		perm = 0002
	}
	if err := blockdev.EnsureMountpoint(v.MountPoint, perm); err != nil {
		v.Log().Warnf("volume %s: mkdir mountpoint %s: %v", v.Label, v.MountPoint, err)
		return false
	}

	// e. FS-specific mount; retry read-only on EROFS is handled inside the
	// driver's Mount via fsdriver.unixMount.
	mountOpts := fsdriver.MountOpts{
		UID: p.Opts.UID, GID: p.Opts.GID,
		FMask: p.Opts.FMask, DMask: p.Opts.DMask,
		ReadOnly: readOnly, WorldWritable: p.Opts.WorldWritable,
	}
	if err := driver.Mount(path, v.MountPoint, mountOpts); err != nil {
		v.Log().Warnf("volume %s: mount %s at %s: %v", v.Label, path, v.MountPoint, err)
		return false
	}

	// f. uuid/label extraction and broadcast-on-change.
	v.SetUUID(fmt.Sprintf("%08x", info.SerialID))
	if info.Label != "" {
		v.SetUserLabel(info.Label)
	}

	// g. PROVIDES_ASEC bind-mount is out of scope (Non-goal: ASEC image
	// driver); the flag is recognized but not acted on.

	// h. start FUSE via ctl.start=fuse_<label>, unless NOFUSE is set.
	if !v.Record.Flags.Has(fstab.NoFUSE) {
		p.Props.Set(propstore.CtlStart("fuse_" + v.Label))
	}

	// i. multi-mount fan-out of the remaining candidates is done by Mount
	// (via mountRemainder) once this candidate has mounted; tryMount only
	// mounts this one candidate.

	v.CurrentlyMountedKdev = path

	// j. guard against state drift.
	if v.state != Checking {
		_ = blockdev.Unmount(v.MountPoint, true)
		v.CurrentlyMountedKdev = ""
		return false
	}

	// k. enter Mounted.
	v.SetState(Mounted)
	return true
}

// mountRemainder mounts every candidate in rest under
// <mountpoint>/<label>{2,3,...}, numbered starting at 2. Each sub-mount is
// best-effort: a failure on one partition doesn't affect the others or the
// overall mount result (spec.md §4.3.2 step i, scenario 4).
func (p Pipeline) mountRemainder(v *Volume, enum DeviceEnumerator, rest []NodeRef) {
	for idx, node := range rest {
		subPath := enum.DevNodePath(node.Major, node.Minor)
		subMountpoint := fmt.Sprintf("%s/%s%d", v.MountPoint, v.Label, idx+2)

		dev, err := blockdev.Open(subPath)
		if err != nil {
			v.Log().Warnf("volume %s: open sub-mount %s: %v", v.Label, subPath, err)
			continue
		}

		info, ok, err := fsprobe.Probe(dev, dev.Size)
		dev.Close()
		if err != nil || !ok {
			v.Log().Warnf("volume %s: probe sub-mount %s failed", v.Label, subPath)
			continue
		}

		driver, ok := p.Drivers[info.FSType]
		if !ok {
			continue
		}

		if err := blockdev.EnsureMountpoint(subMountpoint, 0007); err != nil {
			v.Log().Warnf("volume %s: mkdir sub-mountpoint %s: %v", v.Label, subMountpoint, err)
			continue
		}

		readOnly := classifyReadOnly(subMountpoint, info.FSType, p.Cfg)
		opts := fsdriver.MountOpts{
			UID: p.Opts.UID, GID: p.Opts.GID,
			FMask: p.Opts.FMask, DMask: p.Opts.DMask,
			ReadOnly: readOnly, WorldWritable: p.Opts.WorldWritable,
		}
		if err := driver.Mount(subPath, subMountpoint, opts); err != nil {
			v.Log().Warnf("volume %s: mount sub-partition %s at %s: %v", v.Label, subPath, subMountpoint, err)
			continue
		}

		v.SubMounts = append(v.SubMounts, SubMount{Mountpoint: subMountpoint, DevPath: subPath})
	}
}

// devTypeLabel classifies a mountpoint into the coarse "external"/"usb"/"sd"
// device-type string the Prepared-stage broadcast reports (spec.md §9
// Glossary "Prepared stage"), mirroring classifyReadOnly's prefix checks.
func devTypeLabel(mountpoint string) string {
	switch {
	case strings.HasPrefix(mountpoint, "/storage/usb"):
		return "usb"
	case strings.HasPrefix(mountpoint, "/storage/sdcard"):
		return "sd"
	default:
		return "external"
	}
}

// classifyReadOnly implements the mountpoint read-only policy (spec.md §6):
// USB is writable for FAT (or config-listed filesystems); SD and generic
// /storage paths, and cdrom paths, are read-only.
func classifyReadOnly(mountpoint string, fstype fsprobe.FSType, cfg config.Config) bool {
	switch {
	case strings.HasPrefix(mountpoint, "/storage/usb"):
		return !(fstype == fsprobe.FAT || cfg.IsUSBReadWrite(string(fstype)))
	case strings.Contains(mountpoint, "cdrom"):
		return true
	case strings.HasPrefix(mountpoint, "/storage/sdcard"), strings.HasPrefix(mountpoint, "/storage/"):
		return true
	default:
		return false
	}
}
