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

// Package volmgr implements C5: the registry of volumes that fans block
// events to the right DirectVolume and coordinates the cross-volume
// operations (share/unshare, ASEC cleanup) spec.md §4.5 names.
package volmgr

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/deviceos-project/vold/internal/directvolume"
	"github.com/deviceos-project/vold/internal/event"
	"github.com/deviceos-project/vold/internal/metrics"
	"github.com/deviceos-project/vold/internal/propstore"
	"github.com/deviceos-project/vold/internal/verr"
	"github.com/deviceos-project/vold/internal/volume"
)

// Manager owns an ordered collection of volumes and fans block events to
// the first one whose sysfs paths match (spec.md §4.5).
type Manager struct {
	mu         sync.RWMutex
	volumes    []*directvolume.DirectVolume
	byLabel    map[string]*directvolume.DirectVolume
	broadcaster event.Broadcaster
	props      propstore.Store

	// Metrics is nil-safe: a Manager built without one simply doesn't
	// publish the volumes-by-state gauge.
	Metrics *metrics.Registry
}

func New(bc event.Broadcaster, props propstore.Store) *Manager {
	return &Manager{
		byLabel:     map[string]*directvolume.DirectVolume{},
		broadcaster: bc,
		props:       props,
	}
}

// Register adds dv to the registry in order. Registration order is the
// dispatch precedence spec.md §4.5 describes ("iterates in registration
// order").
func (m *Manager) Register(dv *directvolume.DirectVolume) {
	m.mu.Lock()
	m.volumes = append(m.volumes, dv)
	m.byLabel[dv.Label] = dv
	m.mu.Unlock()

	m.refreshVolumesByState()
}

// refreshVolumesByState recomputes the volumes-by-state gauge from every
// registered volume's current state, if a metrics registry is wired.
func (m *Manager) refreshVolumesByState() {
	if m.Metrics == nil {
		return
	}

	counts := map[volume.State]int{}
	for _, dv := range m.Volumes() {
		counts[dv.State()]++
	}
	for _, st := range volume.AllStates() {
		m.Metrics.VolumesByState.WithLabelValues(st.String()).Set(float64(counts[st]))
	}
}

// Volumes returns every registered volume, in registration order.
func (m *Manager) Volumes() []*directvolume.DirectVolume {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*directvolume.DirectVolume(nil), m.volumes...)
}

// Lookup finds a registered volume by its fstab label.
func (m *Manager) Lookup(label string) (*directvolume.DirectVolume, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	dv, ok := m.byLabel[label]
	return dv, ok
}

// DispatchEvent hands ev to the first DirectVolume whose sysfs-path prefix
// matches devpath (spec.md §4.5). At most one volume ever claims a given
// event since sysfs path prefixes don't overlap across fstab records; a
// bounded errgroup still fans the match-check out across volumes so a slow
// Matches call on one volume (e.g. contended mutex) doesn't serialize
// behind every other registered volume.
func (m *Manager) DispatchEvent(ctx context.Context, ev event.BlockEvent) error {
	volumes := m.Volumes()

	matched := make([]bool, len(volumes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, dv := range volumes {
		i, dv := i, dv
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			matched[i] = dv.Matches(ev)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("volmgr: dispatch %s: %w", ev.DevPath, err)
	}

	defer m.refreshVolumesByState()

	for i, dv := range volumes {
		if matched[i] {
			return dv.HandleEvent(ev)
		}
	}
	return nil
}

// StorageType labels a volume by the index (1-based) of the sysfs path
// that matched it among this volume's configured paths: 1=internal, 2=SD,
// 3-5=USB, 6=SATA (spec.md §4.5). It's published as a process-wide
// property so upper layers can classify a volume without re-parsing fstab.
func (m *Manager) StorageType(dv *directvolume.DirectVolume, devpath string) int {
	for i, prefix := range dv.SysfsPaths {
		if strings.HasPrefix(devpath, prefix) {
			return storageTypeForIndex(i)
		}
	}
	return 0
}

func storageTypeForIndex(i int) int {
	switch i {
	case 0:
		return 1 // internal
	case 1:
		return 2 // SD
	case 2, 3, 4:
		return 3 // USB (slots 3-5 collapse to the same classification)
	case 5:
		return 6 // SATA
	default:
		return 0
	}
}

// PublishStorageType writes tcc.primary_storage.type for dv's matched
// sysfs path (spec.md §6 "Properties written").
func (m *Manager) PublishStorageType(dv *directvolume.DirectVolume, devpath string) {
	if m.props == nil {
		return
	}
	st := m.StorageType(dv, devpath)
	m.props.Set(propstore.PropPrimaryStorageType, fmt.Sprintf("%d", st))
}

func (m *Manager) broadcast(code event.Code, msg string) {
	if m.broadcaster == nil {
		return
	}
	m.broadcaster.SendBroadcast(event.Broadcast{Code: code, Message: msg})
}

// Broadcast emits a manager-level notification not tied to any single
// volume (spec.md §4.5, "Holds the broadcaster used for framework
// notifications").
func (m *Manager) Broadcast(code event.Code, msg string) { m.broadcast(code, msg) }

// CleanupASEC is named in spec.md §4.5 but ASEC image mounting is an
// explicit Non-goal (spec.md §1); this records the request without acting
// on it so the RPC surface has somewhere to land.
func (m *Manager) CleanupASEC(label string, force bool) *verr.Error {
	if _, ok := m.Lookup(label); !ok {
		return verr.New(verr.NoMedia, "volmgr: no such volume %s", label)
	}
	return nil
}

// Share exposes dv's selected device node as a USB mass-storage gadget
// (spec.md §4.5, Glossary "Share / Unshare"). The gadget driver itself is
// an external collaborator; this only advances the state machine and
// records the exposed device path.
func (m *Manager) Share(label, method string) *verr.Error {
	dv, ok := m.Lookup(label)
	if !ok {
		return verr.New(verr.NoMedia, "volmgr: no such volume %s", label)
	}

	dv.Lock()
	if dv.StateLocked() != volume.Idle {
		err := verr.New(verr.Busy, "volmgr: volume %s not idle (state %s)", label, dv.StateLocked())
		dv.Unlock()
		return err
	}

	dv.Log().Infof("sharing volume %s via %s as %s", label, method, dv.ShareDevicePath())
	dv.SetState(volume.Shared)
	dv.Unlock()

	m.refreshVolumesByState()
	return nil
}

// Unshare reverses Share.
func (m *Manager) Unshare(label, method string) *verr.Error {
	dv, ok := m.Lookup(label)
	if !ok {
		return verr.New(verr.NoMedia, "volmgr: no such volume %s", label)
	}

	dv.Lock()
	switch dv.StateLocked() {
	case volume.Shared:
		dv.SetState(volume.Idle)
	case volume.SharedMnt:
		dv.SetState(volume.Mounted)
	default:
		err := verr.New(verr.Invariant, "volmgr: volume %s not shared (state %s)", label, dv.StateLocked())
		dv.Unlock()
		return err
	}
	dv.Unlock()

	m.refreshVolumesByState()
	return nil
}
