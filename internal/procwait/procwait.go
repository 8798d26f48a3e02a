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

// Package procwait implements the busy-mountpoint unmount retry loop
// (spec.md §4.3.3): up to 10 attempts, escalating from a plain unmount to
// SIGHUP-the-holders to SIGKILL-the-holders, sleeping between attempts.
package procwait

import (
	"time"

	"github.com/cenkalli/backoff/v4"
	"golang.org/x/sys/unix"

	"github.com/deviceos-project/vold/internal/vlog"
)

// MaxUnmountRetries is the retry budget spec.md §4.3.3 names.
const MaxUnmountRetries = 10

// Killer is the process-killer collaborator named in spec.md §1: it finds
// and signals whatever holds files open under a mountpoint. The real
// implementation (walking /proc/*/fd, or a kill-on-mount helper) is out of
// scope here.
type Killer interface {
	Signal(mountpoint string, sig unix.Signal) error
}

// NoopKiller signals nothing; used when no process-killer is wired in.
type NoopKiller struct{}

func (NoopKiller) Signal(string, unix.Signal) error { return nil }

// UnmountFunc performs one unmount attempt; force requests MNT_DETACH.
type UnmountFunc func(force bool) error

// UnmountBusy retries unmountFn up to MaxUnmountRetries times, sending
// SIGHUP to mountpoint's holders at retry count 2 and SIGKILL at retry
// count 1, sleeping 1s between attempts, and finally forcing a detach
// unmount. It returns the last error if every attempt failed.
func UnmountBusy(log *vlog.Logger, mountpoint string, killer Killer, unmountFn UnmountFunc) error {
	if killer == nil {
		killer = NoopKiller{}
	}

	bo := backoff.NewConstantBackOff(time.Second)

	var lastErr error
	retriesLeft := MaxUnmountRetries
	for attempt := 0; attempt < MaxUnmountRetries; attempt++ {
		force := attempt == MaxUnmountRetries-1

		err := unmountFn(force)
		if err == nil {
			return nil
		}
		lastErr = err

		retriesLeft--
		log.Warnf("unmount %s busy (retries left %d): %v", mountpoint, retriesLeft, err)

		switch retriesLeft {
		case 2:
			if serr := killer.Signal(mountpoint, unix.SIGHUP); serr != nil {
				log.Warnf("SIGHUP holders of %s: %v", mountpoint, serr)
			}
		case 1:
			if serr := killer.Signal(mountpoint, unix.SIGKILL); serr != nil {
				log.Warnf("SIGKILL holders of %s: %v", mountpoint, serr)
			}
		}

		if attempt < MaxUnmountRetries-1 {
			time.Sleep(bo.NextBackOff())
		}
	}
	return lastErr
}
