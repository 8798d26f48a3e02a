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

	"github.com/deviceos-project/vold/internal/event"
	"github.com/deviceos-project/vold/internal/volume"
)

// diskAdded implements spec.md §4.4.2.
func (d *DirectVolume) diskAdded(ev event.BlockEvent) error {
	d.Lock()

	d.DiskMajor, d.DiskMinor = ev.Major, ev.Minor

	nparts := ev.NParts
	if nparts < 0 {
		nparts = 1
	}
	d.NumParts = nparts

	d.markMediaInserted()

	d.PendingPartCount = nparts
	if d.PendingPartCount > MaxPartitions {
		d.PendingPartCount = MaxPartitions
	}
	for i := range d.PartMinors {
		d.PartMinors[i] = -1
	}

	if nparts == 0 {
		if d.nodeReadable(ev.Major, ev.Minor) {
			if err := d.initMountpointLocked(); err != nil {
				d.Log().Warnf("directvolume %s: init mountpoint: %v", d.Label, err)
				d.SetState(volume.NoMedia)
			} else {
				d.SetState(volume.Idle)
				d.broadcastDiskInserted()
			}
		} else {
			d.SetState(volume.NoMedia)
		}
	} else {
		d.SetState(volume.Pending)
	}

	d.Unlock()
	return nil
}

// partitionAdded implements spec.md §4.4.3.
func (d *DirectVolume) partitionAdded(ev event.BlockEvent) error {
	d.Lock()

	partN := ev.PartN
	if partN < 0 {
		partN = 1
	}
	if partN < 1 || partN > MaxPartitions {
		d.Unlock()
		return fmt.Errorf("directvolume: partition index %d out of range for volume %s", partN, d.Label)
	}

	idx := partN - 1
	if d.PartMinors[idx] == -1 {
		d.PartMinors[idx] = ev.Minor
		d.PendingPartCount--
	}
	// Duplicate partition-adds for an already-known index are ignored
	// (spec.md §4.4.3, guards against redundant uevents).

	retryMount := false
	st := d.StateLocked()
	if d.PendingPartCount <= 0 && st != volume.Formatting && st != volume.Mounted {
		if err := d.initMountpointLocked(); err != nil {
			d.Log().Warnf("directvolume %s: init mountpoint: %v", d.Label, err)
			d.SetState(volume.NoMedia)
		} else {
			d.SetState(volume.Idle)
			d.broadcastDiskInserted()

			if d.RetryMount {
				d.RetryMount = false
				retryMount = true
			}
		}
	}

	d.Unlock()

	// retry_mount is consumed synchronously on Pending->Idle (spec.md
	// §4.3.1); MountFn takes the volume mutex itself, so it must run
	// after we've released it above.
	if retryMount && d.MountFn != nil {
		_ = d.MountFn()
	}
	return nil
}

func (d *DirectVolume) broadcastDiskInserted() {
	d.Broadcast(event.VolumeDiskInserted, fmt.Sprintf("%s %s disk inserted (%d:%d)",
		d.Label, d.FuseMountPoint, d.DiskMajor, d.DiskMinor))
}
