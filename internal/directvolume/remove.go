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

	"github.com/deviceos-project/vold/internal/blockdev"
	"github.com/deviceos-project/vold/internal/event"
	"github.com/deviceos-project/vold/internal/volume"
)

// diskRemoved implements spec.md §4.4.4.
func (d *DirectVolume) diskRemoved(ev event.BlockEvent) error {
	d.Lock()
	defer d.Unlock()

	d.SetRemoving(true)

	// §4.4.4 names the NumParts==0 whole-disk case explicitly, but the
	// unsafe-removal check (mounted/checking/shared) applies identically
	// whether the volume had partitions or was mounted as a bare disk.
	d.unsafeRemoveLocked()

	if d.StateLocked() != volume.NoMedia {
		d.Broadcast(event.VolumeDiskRemoved, fmt.Sprintf("%s %s disk removed (%d:%d)",
			d.Label, d.FuseMountPoint, d.DiskMajor, d.DiskMinor))
		d.SetState(volume.NoMedia)
	}

	for i := 0; i < MaxPartitions; i++ {
		if d.PartMinors[i] != -1 {
			_ = blockdev.UnlinkNode(d.devNodePath(d.DiskMajor, d.PartMinors[i]))
		}
	}
	_ = blockdev.UnlinkNode(d.devNodePath(d.DiskMajor, d.DiskMinor))

	d.clearMediaInserted()

	for i := range d.PartMinors {
		d.PartMinors[i] = -1
	}
	d.DiskMajor, d.DiskMinor = d.originalDiskMajor, d.originalDiskMinor
	d.NumParts = 0
	d.PendingPartCount = 0
	d.PartIdx = d.originalPartIdx

	d.SetRemoving(false)
	return nil
}

// unsafeRemoveLocked implements spec.md §4.4.6: a disk-remove delivered
// while the volume is still mounted, checking, or shared. Callers must
// hold the volume mutex.
func (d *DirectVolume) unsafeRemoveLocked() {
	st := d.StateLocked()

	if d.CurrentlyMountedKdev != "" && (st == volume.Mounted || st == volume.SharedMnt) {
		d.countUnsafeRemoval()
		// PROVIDES_ASEC cleanup is out of scope (Non-goal: ASEC image
		// driver); the bad-removal broadcast and force-unmount still run.
		d.Broadcast(event.VolumeBadRemoval, fmt.Sprintf("%s %s bad removal (%d:%d)",
			d.Label, d.FuseMountPoint, d.DiskMajor, d.DiskMinor))
		if d.MountPoint != "" {
			if err := blockdev.Unmount(d.MountPoint, true); err != nil {
				d.Log().Warnf("directvolume %s: force unmount on bad removal: %v", d.Label, err)
			}
		}
		d.CurrentlyMountedKdev = ""
		d.SubMounts = nil
		return
	}

	switch st {
	case volume.Shared:
		d.countUnsafeRemoval()
		// Unsharing the USB mass-storage gadget is delegated to
		// VolumeManager, which owns the share/unshare RPC surface; here we
		// only emit the bad-removal notice (spec.md §4.4.6).
		d.Broadcast(event.VolumeBadRemoval, fmt.Sprintf("%s %s bad removal (%d:%d)",
			d.Label, d.FuseMountPoint, d.DiskMajor, d.DiskMinor))
	case volume.Checking:
		d.countUnsafeRemoval()
		// Any ASEC progress cleanup is out of scope for the same reason as
		// above.
		d.Broadcast(event.VolumeBadRemoval, fmt.Sprintf("%s %s bad removal (%d:%d)",
			d.Label, d.FuseMountPoint, d.DiskMajor, d.DiskMinor))
	}
}

// countUnsafeRemoval increments the UnsafeRemovals metric, if one is wired.
func (d *DirectVolume) countUnsafeRemoval() {
	if d.Metrics == nil {
		return
	}
	d.Metrics.UnsafeRemovals.WithLabelValues(d.Label).Inc()
}
