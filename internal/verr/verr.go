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

// Package verr defines the typed error taxonomy used across the volume
// daemon and its mapping onto POSIX errno values at the RPC boundary.
package verr

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Kind classifies a failure the way the mount/unmount/format pipelines
// recover from it, independent of the underlying OS error.
type Kind int

const (
	// NoMedia means the operation isn't permitted in the volume's current
	// state because there's no media at all (ENODEV).
	NoMedia Kind = iota
	// Busy means the volume is in a transient state (ENODEV-adjacent EBUSY).
	Busy
	// NotSupported means no driver/probe could handle the filesystem.
	NotSupported
	// CorruptFS means a filesystem check failed beyond repair.
	CorruptFS
	// IOError wraps an underlying read/write/syscall failure.
	IOError
	// Invariant means the operation was invoked in the wrong state.
	Invariant
	// NoSpace means a fixed-size buffer (e.g. a label) couldn't hold the result.
	NoSpace
)

func (k Kind) String() string {
	switch k {
	case NoMedia:
		return "no-media"
	case Busy:
		return "busy"
	case NotSupported:
		return "not-supported"
	case CorruptFS:
		return "corrupt-fs"
	case IOError:
		return "io-error"
	case Invariant:
		return "invariant"
	case NoSpace:
		return "no-space"
	default:
		return "unknown"
	}
}

// Errno returns the POSIX errno this Kind maps onto at the RPC boundary.
func (k Kind) Errno() unix.Errno {
	switch k {
	case NoMedia:
		return unix.ENODEV
	case Busy:
		return unix.EBUSY
	case NotSupported:
		return unix.ENOTSUP
	case CorruptFS, IOError:
		return unix.EIO
	case Invariant:
		return unix.EINVAL
	case NoSpace:
		return unix.ERANGE
	default:
		return unix.EIO
	}
}

// Error is the concrete error type returned by every public vold operation.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error with no wrapped cause.
func New(kind Kind, msg string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(msg, args...)}
}

// Wrap builds an Error wrapping an underlying cause.
func Wrap(kind Kind, err error, msg string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(msg, args...), Err: err}
}

// Is reports whether err is a *Error of the given Kind.
func Is(err error, kind Kind) bool {
	ve, ok := err.(*Error)
	return ok && ve.Kind == kind
}
