//go:build linux
// +build linux

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

package fusepass

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
)

// Session is a running passthrough mount, ready to be torn down with Stop.
type Session struct {
	conn        *fuse.Conn
	fuseMountpoint string
	errc        chan error
}

// Start mounts a PassthroughFS rooted at rawPath onto fuseMountpoint and
// serves it in the background, mirroring the teacher's blocking Mount
// entrypoint but handing control back to the caller instead of blocking on
// signal delivery: the volume pipeline owns the lifetime of the FUSE
// session, not the process's own signal handlers.
func Start(fuseMountpoint, rawPath string, uid, gid uint32) (*Session, error) {
	if err := PrepareMountpoint(fuseMountpoint); err != nil {
		return nil, fmt.Errorf("fusepass: prepare mountpoint: %w", err)
	}

	conn, err := fuse.Mount(fuseMountpoint, fuse.FSName("vold"), fuse.Subtype("fusepass"))
	if err != nil {
		return nil, fmt.Errorf("fusepass: mount %s: %w", fuseMountpoint, err)
	}

	root := &PassthroughFS{RawPath: rawPath, UID: uid, GID: gid}
	s := &Session{conn: conn, fuseMountpoint: fuseMountpoint, errc: make(chan error, 1)}

	go func() {
		s.errc <- fusefs.New(conn, nil).Serve(root)
	}()

	select {
	case <-conn.Ready:
		if conn.MountError != nil {
			return nil, fmt.Errorf("fusepass: mount %s: %w", fuseMountpoint, conn.MountError)
		}
	case err := <-s.errc:
		if err != nil {
			return nil, fmt.Errorf("fusepass: serve %s: %w", fuseMountpoint, err)
		}
	}

	return s, nil
}

// Stop unmounts the passthrough filesystem, retrying on EBUSY the same way
// the teacher's waitForUmount loop does.
func (s *Session) Stop() error {
	var err error
	for i := 0; i < 3; i++ {
		if err = fuse.Unmount(s.fuseMountpoint); err == nil {
			break
		}
		time.Sleep(200 * time.Millisecond)
	}
	if err != nil {
		return fmt.Errorf("fusepass: unmount %s: %w", s.fuseMountpoint, err)
	}
	return s.conn.Close()
}

// WaitSignal blocks until SIGINT/SIGTERM or the serve loop exits, then
// unmounts, for running a passthrough session in the foreground. None of
// the cmd/vold subcommands call it.
func (s *Session) WaitSignal() error {
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigc)

	select {
	case <-sigc:
	case err := <-s.errc:
		if err != nil {
			return err
		}
	}
	return s.Stop()
}

// PrepareMountpoint ensures mountpoint exists and is an empty directory,
// refusing to mount over a populated one (grounded on the teacher's
// internal/fuse.PrepareMountpoint/IsDirEmpty).
func PrepareMountpoint(mountpoint string) error {
	fi, err := os.Stat(mountpoint)
	if os.IsNotExist(err) {
		return os.MkdirAll(mountpoint, 0755)
	}
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return fmt.Errorf("fusepass: %s is not a directory", mountpoint)
	}

	empty, err := IsDirEmpty(mountpoint)
	if err != nil {
		return err
	}
	if !empty {
		return fmt.Errorf("fusepass: mountpoint %s is not empty", mountpoint)
	}
	return nil
}

// IsDirEmpty reports whether dir contains no entries.
func IsDirEmpty(dir string) (bool, error) {
	f, err := os.Open(dir)
	if err != nil {
		return false, err
	}
	defer f.Close()

	_, err = f.Readdirnames(1)
	if err != nil {
		return true, nil
	}
	return false, nil
}
