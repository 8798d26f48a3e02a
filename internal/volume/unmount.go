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
	"github.com/deviceos-project/vold/internal/blockdev"
	"github.com/deviceos-project/vold/internal/fstab"
	"github.com/deviceos-project/vold/internal/procwait"
	"github.com/deviceos-project/vold/internal/propstore"
	"github.com/deviceos-project/vold/internal/verr"
)

// UnmountOptions carries the per-call knobs the unmount pipeline needs
// (spec.md §4.3.3).
type UnmountOptions struct {
	// Killer signals processes still holding files open under a
	// mountpoint during the busy-unmount retry/escalation loop.
	Killer procwait.Killer
	// RevertCrypto requests the crypto remap be reverted once the raw
	// mount is torn down. Acting on it is out of scope (Non-goal:
	// device-mapper crypto implementation); the flag is only recorded.
	RevertCrypto bool
}

// Unmount runs the unmount pipeline (spec.md §4.3.3). Precondition:
// v.State() == Mounted.
func (p Pipeline) Unmount(v *Volume, opts UnmountOptions) *verr.Error {
	v.Lock()
	defer v.Unlock()

	if v.state != Mounted {
		return verr.New(verr.Invariant, "volume %s is not mounted (state %s)", v.Label, v.state)
	}

	v.SetState(Unmounting)

	if !v.Record.Flags.Has(fstab.NoFUSE) {
		p.Props.Set(propstore.CtlStop("fuse_" + v.Label))
	}

	// Tear down multi-mount sub-partitions in reverse order before the
	// primary mount (spec.md §4.3.3, "for each multi-mount sub-mount in
	// reverse").
	var tornDown []SubMount
	for i := len(v.SubMounts) - 1; i >= 0; i-- {
		sm := v.SubMounts[i]
		if err := procwait.UnmountBusy(v.Log(), sm.Mountpoint, opts.Killer, func(force bool) error {
			return blockdev.Unmount(sm.Mountpoint, force)
		}); err != nil {
			v.Log().Warnf("volume %s: unmount sub-mount %s: %v", v.Label, sm.Mountpoint, err)
			// Restore what we already tore down and bail back to Mounted
			// (spec.md §4.3.3, "on any failure ... return to Mounted").
			v.SubMounts = append(tornDown, v.SubMounts[:i+1]...)
			v.SetState(Mounted)
			return verr.Wrap(verr.IOError, err, "unmount sub-mount %s of volume %s", sm.Mountpoint, v.Label)
		}
		tornDown = append(tornDown, sm)
	}
	v.SubMounts = nil

	// ASEC bind-mount teardown is out of scope (Non-goal: ASEC image
	// driver); nothing to unmount here even when PROVIDES_ASEC is set.

	// Unmount the FUSE view first, then the raw mountpoint, escalating
	// through the same busy-retry loop.
	if v.FuseMountPoint != "" && v.FuseMountPoint != v.MountPoint {
		if err := procwait.UnmountBusy(v.Log(), v.FuseMountPoint, opts.Killer, func(force bool) error {
			return blockdev.Unmount(v.FuseMountPoint, force)
		}); err != nil {
			v.SetState(Mounted)
			return verr.Wrap(verr.IOError, err, "unmount fuse mountpoint %s of volume %s", v.FuseMountPoint, v.Label)
		}
	}

	if err := procwait.UnmountBusy(v.Log(), v.MountPoint, opts.Killer, func(force bool) error {
		return blockdev.Unmount(v.MountPoint, force)
	}); err != nil {
		v.SetState(Mounted)
		return verr.Wrap(verr.IOError, err, "unmount %s of volume %s", v.MountPoint, v.Label)
	}

	v.CurrentlyMountedKdev = ""
	v.SetUUID("")
	v.SetUserLabel("")
	v.SetState(Idle)
	return nil
}
