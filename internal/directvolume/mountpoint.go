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
package directvolume

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/deviceos-project/vold/internal/blockdev"
	"github.com/deviceos-project/vold/internal/event"
)

// initMountpointLocked implements spec.md §4.4.5. Callers must hold the
// volume mutex.
func (d *DirectVolume) initMountpointLocked() error {
	major, minor, ok := d.primaryNodeLocked()
	if !ok {
		return fmt.Errorf("directvolume: no partition selected for volume %s", d.Label)
	}

	if !d.nodeReadable(major, minor) {
		return fmt.Errorf("directvolume: node %s unreadable", d.devNodePath(major, minor))
	}

	info, ok := d.probeNode(major, minor)
	if !ok {
		d.Broadcast(event.VolumeDiskNoAvailable, fmt.Sprintf("%s %s disk not available", d.Label, d.FuseMountPoint))
		return fmt.Errorf("directvolume: no usable filesystem on %s for volume %s", d.devNodePath(major, minor), d.Label)
	}

	d.SetUUID(fmt.Sprintf("%08x", info.SerialID))
	if info.Label != "" {
		d.SetUserLabel(info.Label)
	}

	// spec.md §9 Open Question (a): the literal "UNKNOWN" mountpoint
	// rewrite is undocumented in the original source; behavior is
	// preserved as-is, generating a fresh volume id rather than reusing
	// the probed serial so two same-serial cards never collide on path.
	if d.MountPoint == "UNKNOWN" {
		d.MountPoint = fmt.Sprintf("/mnt/vold/%s", uuid.New().String())
	}
	if d.FuseMountPoint == "" || d.FuseMountPoint == "UNKNOWN" {
		d.FuseMountPoint = d.MountPoint
	}

	return blockdev.EnsureMountpoint(d.MountPoint, 0755)
}

// primaryNodeLocked resolves the node path spec.md §4.4.5 describes:
// the disk itself when NumParts == 0, otherwise the auto-picked (or
// pinned) partition. Callers must hold the volume mutex.
func (d *DirectVolume) primaryNodeLocked() (major, minor int, ok bool) {
	if d.NumParts == 0 {
		return d.DiskMajor, d.DiskMinor, true
	}

	idx := d.autoPickPartIndexLocked()
	if idx < 0 {
		return 0, 0, false
	}
	return d.DiskMajor, d.PartMinors[idx], true
}

// autoPickPartIndexLocked picks which known partition identifies the
// volume: the pinned PartIdx when set, otherwise the largest partition by
// probed size or the first non-empty one, per Config.MountLargestPartition
// (spec.md §4.4.5 "Auto-pick").
func (d *DirectVolume) autoPickPartIndexLocked() int {
	if d.PartIdx != -1 {
		idx := d.PartIdx - 1
		if idx >= 0 && idx < MaxPartitions && d.PartMinors[idx] != -1 {
			return idx
		}
		return -1
	}

	best := -1
	var bestSize uint64
	for i := 0; i < MaxPartitions; i++ {
		if d.PartMinors[i] == -1 {
			continue
		}
		if !d.Config.MountLargestPartition {
			return i
		}
		info, ok := d.probeNode(d.DiskMajor, d.PartMinors[i])
		if !ok {
			continue
		}
		if best == -1 || info.SizeBytes > bestSize {
			best, bestSize = i, info.SizeBytes
		}
	}
	return best
}
