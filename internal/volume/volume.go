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
	"sync"

	"github.com/deviceos-project/vold/internal/event"
	"github.com/deviceos-project/vold/internal/fstab"
	"github.com/deviceos-project/vold/internal/vlog"
)

// Volume is one managed removable-storage volume: the fstab record that
// defines it, plus the mutable state the block-event handlers and the
// mount/unmount/format pipelines drive (spec.md §3, §4.3).
type Volume struct {
	mu sync.Mutex

	Record fstab.Record

	state State

	Label       string
	UUID        string
	UserLabel   string
	MountPoint  string
	FuseMountPoint string

	// CurrentlyMountedKdev is set iff state is Mounted or SharedMnt
	// (spec.md §8 invariant).
	CurrentlyMountedKdev string

	// SubMounts records the multi-mount fan-out of additional partitions
	// under <mountpoint>/<label>{2,3,...} (spec.md §4.3.2 step i), torn
	// down in reverse by the unmount pipeline (spec.md §4.3.3).
	SubMounts []SubMount

	// RetryMount is latched by a mount_req seen while Pending, and
	// consumed (a synchronous mount attempted) on the next Pending->Idle
	// transition; cleared on any other exit from Pending (spec.md §9).
	RetryMount bool

	// removing guards against re-mounting media mid-teardown (spec.md §5).
	removing bool

	log        *vlog.Logger
	broadcaster event.Broadcaster
}

// New builds a Volume bound to rec, starting in NoMedia. MountPoint starts
// as the "UNKNOWN" sentinel: rec.MountPoint is always the literal "auto"
// (fstab.Record.Validate enforces it), meaning the real mountpoint is
// picked at disk-insert time (spec.md §4.4.5), not read from the record.
func New(rec fstab.Record, log *vlog.Logger, bc event.Broadcaster) *Volume {
	return &Volume{
		Record:     rec,
		Label:      rec.Label,
		state:      NoMedia,
		MountPoint: "UNKNOWN",
		log:        log,
		broadcaster: bc,
	}
}

// State returns the volume's current state.
func (v *Volume) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// StateLocked returns the current state without taking the mutex; callers
// (block-event handlers in package directvolume) must already hold it.
func (v *Volume) StateLocked() State { return v.state }

// Lock/Unlock expose the volume mutex to the pipelines in this package,
// which must hold it for their entire duration (spec.md §5).
func (v *Volume) Lock()   { v.mu.Lock() }
func (v *Volume) Unlock() { v.mu.Unlock() }

// SetRemoving sets/clears the removing flag; callers must hold the mutex.
func (v *Volume) SetRemoving(removing bool) { v.removing = removing }
func (v *Volume) Removing() bool            { return v.removing }

// SetState transitions the volume to next, broadcasting VolumeStateChange
// unless next equals the current state, in which case it logs a warning
// and returns without a broadcast (original vold Volume::setState
// semantics, spec.md §4 "Duplicate-state-set is a no-op+warning"). Callers
// must hold the volume mutex.
func (v *Volume) SetState(next State) {
	old := v.state
	if next == old {
		v.log.Warnf("volume %s: setState called with current state %s, ignoring", v.Label, old)
		return
	}

	v.state = next

	// retry_mount is cleared on any exit from Pending other than to Idle
	// (spec.md §4, grounded on Volume::setState in the original source);
	// the Idle case is handled by the caller that consumes it synchronously.
	if old == Pending && next != Idle {
		v.RetryMount = false
	}

	v.broadcast(event.VolumeStateChange, fmt.Sprintf("%s %s state changed from %d (%s) to %d (%s)",
		v.Label, v.FuseMountPoint, old, old, next, next))
}

// SetUUID updates the volume's UUID, broadcasting VolumeUuidChange even
// when newUUID is empty (a clear), because the original source broadcasts
// on any change including to the empty value (spec.md §4).
func (v *Volume) SetUUID(newUUID string) {
	if newUUID == v.UUID {
		return
	}
	v.UUID = newUUID
	v.broadcast(event.VolumeUuidChange, fmt.Sprintf("%s %s", v.Label, newUUID))
}

// SetUserLabel updates the volume's user-visible label with the same
// broadcast-on-change-including-clear semantics as SetUUID.
func (v *Volume) SetUserLabel(newLabel string) {
	if newLabel == v.UserLabel {
		return
	}
	v.UserLabel = newLabel
	v.broadcast(event.VolumeUserLabelChange, fmt.Sprintf("%s %s", v.Label, newLabel))
}

func (v *Volume) broadcast(code event.Code, msg string) {
	if v.broadcaster == nil {
		return
	}
	v.broadcaster.SendBroadcast(event.Broadcast{Code: code, Message: msg})
}

// Broadcast emits an arbitrary typed lifecycle notification tied to this
// volume; used by DirectVolume and VolumeManager for the events Volume
// itself doesn't originate (DiskInserted, DiskRemoved, DiskNoAvailable,
// BadRemoval — spec.md §4.6).
func (v *Volume) Broadcast(code event.Code, msg string) { v.broadcast(code, msg) }

func (v *Volume) Log() *vlog.Logger { return v.log }
