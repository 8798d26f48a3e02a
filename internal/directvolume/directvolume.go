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

// Package directvolume implements C4: the specialization of a Volume whose
// backing devices are discovered through kernel block hot-plug events
// (spec.md §4.4). It owns the disk/partition model (major/minor numbers,
// the sparse partition-minor map, the pending-partition countdown) that the
// generic Volume state machine doesn't track, and it is the
// volume.DeviceEnumerator the mount pipeline consults for candidate nodes.
package directvolume

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/deviceos-project/vold/internal/blockdev"
	"github.com/deviceos-project/vold/internal/config"
	"github.com/deviceos-project/vold/internal/event"
	"github.com/deviceos-project/vold/internal/fsprobe"
	"github.com/deviceos-project/vold/internal/metrics"
	"github.com/deviceos-project/vold/internal/propstore"
	"github.com/deviceos-project/vold/internal/verr"
	"github.com/deviceos-project/vold/internal/volume"
)

// MaxPartitions bounds the sparse partition-minor map (spec.md §3).
const MaxPartitions = 32

// DirectVolume extends Volume with the kernel-hotplug-driven disk model
// (spec.md §3 "DirectVolume (extends Volume)").
type DirectVolume struct {
	*volume.Volume

	// SysfsPaths is the ordered set of sysfs-path prefixes this volume is
	// bound to (from fstab blk_device/blk_device2).
	SysfsPaths []string

	DiskMajor, DiskMinor int
	NumParts             int
	PartMinors           [MaxPartitions]int
	PendingPartCount     int
	// PartIdx is the chosen partition to mount; -1 means auto-pick.
	PartIdx int

	IsDecrypted bool

	// MountFn issues a mount attempt against this volume via the mount
	// pipeline; cmd/vold wires it when it builds the daemon's volumes
	// (volmgr.Manager.Register does not set it). It is invoked outside the
	// volume mutex.
	MountFn func() *verr.Error

	Config config.Config
	Props  propstore.Store

	// Metrics is nil-safe: a DirectVolume built without one (tests, or a
	// daemon run with metrics disabled) simply doesn't record anything.
	Metrics *metrics.Registry

	// NodeDir and MountedMarkerDir default to the real vold paths but are
	// overridable for tests.
	NodeDir          string
	MountedMarkerDir string

	originalDiskMajor, originalDiskMinor int
	originalPartIdx                     int
	originalPartMinors                  [MaxPartitions]int
}

// New builds a DirectVolume bound to v, starting with no media.
func New(v *volume.Volume, sysfsPaths []string, partIdx int, cfg config.Config, props propstore.Store) *DirectVolume {
	dv := &DirectVolume{
		Volume:           v,
		SysfsPaths:       append([]string(nil), sysfsPaths...),
		DiskMajor:        -1,
		DiskMinor:        -1,
		PartIdx:          partIdx,
		Config:           cfg,
		Props:            props,
		NodeDir:          "/dev/block/vold",
		MountedMarkerDir: "/dev/block/mounted",

		originalDiskMajor: -1,
		originalDiskMinor: -1,
		originalPartIdx:   partIdx,
	}
	for i := range dv.PartMinors {
		dv.PartMinors[i] = -1
		dv.originalPartMinors[i] = -1
	}
	return dv
}

func (d *DirectVolume) devNodePath(major, minor int) string {
	return fmt.Sprintf("%s/%d:%d", d.NodeDir, major, minor)
}

// DevNodePath implements volume.DeviceEnumerator.
func (d *DirectVolume) DevNodePath(major, minor int) string { return d.devNodePath(major, minor) }

// EnumerateMountCandidates implements volume.DeviceEnumerator (spec.md
// §4.3.2 step 3). Called by the mount pipeline while already holding the
// volume mutex.
func (d *DirectVolume) EnumerateMountCandidates() ([]volume.NodeRef, error) {
	if d.PartIdx == -1 {
		if d.NumParts == 0 {
			return []volume.NodeRef{{Major: d.DiskMajor, Minor: d.DiskMinor}}, nil
		}
		nodes := make([]volume.NodeRef, 0, d.NumParts)
		for i := 0; i < MaxPartitions; i++ {
			if d.PartMinors[i] != -1 {
				nodes = append(nodes, volume.NodeRef{Major: d.DiskMajor, Minor: d.PartMinors[i]})
			}
		}
		return nodes, nil
	}

	// spec.md §9 Open Question (b): the original source wrote
	// part_minors[part_idx-1] = part_idx when that slot was empty,
	// conflating a partition index with a minor number. We refuse the
	// mount instead.
	idx := d.PartIdx - 1
	if idx < 0 || idx >= MaxPartitions || d.PartMinors[idx] == -1 {
		return nil, fmt.Errorf("directvolume: part_idx %d has no known minor for volume %s", d.PartIdx, d.Label)
	}
	return []volume.NodeRef{{Major: d.DiskMajor, Minor: d.PartMinors[idx]}}, nil
}

// ShareDevicePath returns the device node exposed when this volume is
// shared as a USB mass-storage gadget: the selected partition's minor when
// PartIdx is pinned, the whole disk otherwise (spec.md original_source
// `getShareDevice` vs `getDiskDevice` distinction, SPEC_FULL.md §4).
func (d *DirectVolume) ShareDevicePath() string {
	if d.PartIdx != -1 {
		idx := d.PartIdx - 1
		if idx >= 0 && idx < MaxPartitions && d.PartMinors[idx] != -1 {
			return d.devNodePath(d.DiskMajor, d.PartMinors[idx])
		}
	}
	return d.devNodePath(d.DiskMajor, d.DiskMinor)
}

// DiskDevicePath returns the whole-disk device node, used by the format
// pipeline's whole-device path.
func (d *DirectVolume) DiskDevicePath() string {
	return d.devNodePath(d.DiskMajor, d.DiskMinor)
}

// Matches reports whether ev belongs to this DirectVolume by sysfs-path
// prefix and the identity filters of spec.md §4.4.1.
func (d *DirectVolume) Matches(ev event.BlockEvent) bool {
	if !hasPrefixAny(ev.DevPath, d.SysfsPaths) {
		return false
	}

	switch ev.DevType {
	case event.Disk:
		switch ev.Action {
		case event.Add:
			if d.DiskMajor != -1 {
				return false
			}
			// Minor-number-240 virtual devices with absent/zero NPARTS are
			// spurious LVM/ramdisk matches (spec.md §4.4.1).
			if ev.Minor == 240 && ev.NParts <= 0 {
				return false
			}
			return true
		case event.Remove, event.Change:
			return ev.Major == d.DiskMajor && ev.Minor == d.DiskMinor
		}
	case event.Partition:
		return ev.Major == d.DiskMajor && abs(ev.Minor-d.DiskMinor) <= 15
	}
	return false
}

// HandleEvent dispatches a matching block event to the appropriate handler
// (spec.md §4.4.1-§4.4.4). Events that don't match this volume's sysfs
// paths or identity filters are silently ignored, mirroring
// VolumeManager's fan-out-by-prefix contract.
func (d *DirectVolume) HandleEvent(ev event.BlockEvent) error {
	if !d.Matches(ev) {
		return nil
	}

	if err := blockdev.MknodBlock(d.devNodePath(ev.Major, ev.Minor), ev.Major, ev.Minor); err != nil {
		d.Log().Warnf("directvolume %s: mknod %d:%d: %v", d.Label, ev.Major, ev.Minor, err)
	}

	switch ev.DevType {
	case event.Disk:
		switch ev.Action {
		case event.Add:
			return d.diskAdded(ev)
		case event.Remove:
			return d.diskRemoved(ev)
		case event.Change:
			d.Log().Debugf("directvolume %s: disk change event for %d:%d", d.Label, ev.Major, ev.Minor)
			return nil
		}
	case event.Partition:
		if ev.Action == event.Add {
			return d.partitionAdded(ev)
		}
	}
	return nil
}

func hasPrefixAny(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if len(s) >= len(p) && s[:len(p)] == p {
			return true
		}
	}
	return false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// markMediaInserted writes the sentinel file used to mark this volume's
// media present (spec.md §4.4.2). Failures are logged, not fatal.
func (d *DirectVolume) markMediaInserted() {
	path := filepath.Join(d.MountedMarkerDir, d.Label)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		d.Log().Warnf("directvolume %s: mkdir marker dir: %v", d.Label, err)
		return
	}
	if err := os.WriteFile(path, nil, 0644); err != nil {
		d.Log().Warnf("directvolume %s: write media-inserted marker %s: %v", d.Label, path, err)
	}
}

// clearMediaInserted removes the sentinel file on disk-remove.
func (d *DirectVolume) clearMediaInserted() {
	path := filepath.Join(d.MountedMarkerDir, d.Label)
	_ = os.Remove(path)
}

func (d *DirectVolume) nodeReadable(major, minor int) bool {
	dev, err := blockdev.Open(d.devNodePath(major, minor))
	if err != nil {
		return false
	}
	dev.Close()
	return true
}

// probeNode opens and probes the device node at major:minor.
func (d *DirectVolume) probeNode(major, minor int) (fsprobe.Info, bool) {
	dev, err := blockdev.Open(d.devNodePath(major, minor))
	if err != nil {
		return fsprobe.Info{}, false
	}
	defer dev.Close()

	info, ok, err := fsprobe.Probe(dev, dev.Size)
	if err != nil || !ok {
		return fsprobe.Info{}, false
	}
	return info, true
}
