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

// Package event defines the typed hot-plug events consumed by the daemon
// (decoded upstream by a netlink socket decoder, out of scope here) and the
// typed lifecycle broadcasts it emits toward the upper-layer framework.
package event

import "fmt"

// Action is the kernel uevent action that produced a BlockEvent.
type Action int

const (
	Add Action = iota
	Remove
	Change
)

func (a Action) String() string {
	switch a {
	case Add:
		return "add"
	case Remove:
		return "remove"
	case Change:
		return "change"
	default:
		return "unknown"
	}
}

// DevType distinguishes a whole-disk uevent from a partition uevent.
type DevType int

const (
	Disk DevType = iota
	Partition
)

func (d DevType) String() string {
	if d == Disk {
		return "disk"
	}
	return "partition"
}

// BlockEvent is the typed, decoded form of a kernel hot-plug uevent. The
// netlink socket decoder that produces these from raw uevent text is an
// external collaborator; this type is the interface the core consumes.
type BlockEvent struct {
	Action  Action
	DevPath string
	DevType DevType
	Major   int
	Minor   int

	// NParts is the number of partitions a disk-add event announces.
	// -1 means the field was absent (callers default it to 1).
	NParts int
	// PartN is the 1-based partition index a partition-add event carries.
	// -1 means the field was absent (callers default it to 1).
	PartN int

	DevName string
}

// Code is a framework broadcast code.
type Code int

const (
	VolumeStateChange Code = iota
	VolumeUuidChange
	VolumeUserLabelChange
	VolumeDiskInserted
	VolumeDiskRemoved
	VolumeDiskPrepared
	VolumeBadRemoval
	VolumeMountFailedNoMedia
	VolumeDiskNoAvailable
)

func (c Code) String() string {
	switch c {
	case VolumeStateChange:
		return "VolumeStateChange"
	case VolumeUuidChange:
		return "VolumeUuidChange"
	case VolumeUserLabelChange:
		return "VolumeUserLabelChange"
	case VolumeDiskInserted:
		return "VolumeDiskInserted"
	case VolumeDiskRemoved:
		return "VolumeDiskRemoved"
	case VolumeDiskPrepared:
		return "VolumeDiskPrepared"
	case VolumeBadRemoval:
		return "VolumeBadRemoval"
	case VolumeMountFailedNoMedia:
		return "VolumeMountFailedNoMedia"
	case VolumeDiskNoAvailable:
		return "VolumeDiskNoAvailable"
	default:
		return "Unknown"
	}
}

// Broadcast is a single framework-facing lifecycle notification.
type Broadcast struct {
	Code     Code
	Message  string
	WithUUID bool
}

// Broadcaster is the egress interface toward the upper-layer framework (the
// command-listener socket that actually serializes and ships these is out
// of scope; this is the interface the core consumes).
type Broadcaster interface {
	SendBroadcast(b Broadcast)
}

// Sink is a Broadcaster that records broadcasts in memory, useful for tests
// and as the default when no framework socket is wired up.
type Sink struct {
	broadcasts []Broadcast
}

func NewSink() *Sink { return &Sink{} }

func (s *Sink) SendBroadcast(b Broadcast) {
	s.broadcasts = append(s.broadcasts, b)
}

func (s *Sink) All() []Broadcast {
	return append([]Broadcast(nil), s.broadcasts...)
}

func (s *Sink) Last() (Broadcast, bool) {
	if len(s.broadcasts) == 0 {
		return Broadcast{}, false
	}
	return s.broadcasts[len(s.broadcasts)-1], true
}

// Reset clears recorded broadcasts.
func (s *Sink) Reset() { s.broadcasts = nil }

// String renders a broadcast the way it would appear on the wire: a code
// name followed by whitespace-separated tokens (spec.md §6).
func (b Broadcast) String() string {
	return fmt.Sprintf("%s %s", b.Code, b.Message)
}
