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

// Package volume implements the per-volume state machine and its
// mount/unmount/format pipelines (spec.md §4.3).
package volume

// State is one node of the volume state machine (spec.md §4.3.1).
type State int

const (
	NoMedia State = iota
	Idle
	Pending
	Checking
	Mounted
	Shared
	SharedMnt
	Formatting
	Unmounting
)

// AllStates returns every state in the machine, for callers that need to
// report on all of them regardless of which are currently occupied (e.g.
// a volumes-by-state metric that should report 0 for empty states).
func AllStates() []State {
	return []State{NoMedia, Idle, Pending, Checking, Mounted, Shared, SharedMnt, Formatting, Unmounting}
}

func (s State) String() string {
	switch s {
	case NoMedia:
		return "NoMedia"
	case Idle:
		return "Idle"
	case Pending:
		return "Pending"
	case Checking:
		return "Checking"
	case Mounted:
		return "Mounted"
	case Shared:
		return "Shared"
	case SharedMnt:
		return "SharedMnt"
	case Formatting:
		return "Formatting"
	case Unmounting:
		return "Unmounting"
	default:
		return "Unknown"
	}
}
