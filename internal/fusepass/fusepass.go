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

// Package fusepass implements the per-volume FUSE passthrough filesystem
// that backs a Volume's fuse_mountpoint: a read/write view of the raw
// mountpoint with every node's owning uid/gid remapped to the fixed values
// the upper-layer framework expects (spec.md §3 "Mountpoint / FUSE
// mountpoint", Glossary). This replaces the on-device sdcard FUSE daemon
// named as an external collaborator in spec.md §1 with an in-process one,
// grounded on the teacher's internal/fuse passthrough shape.
package fusepass

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"
)

// PassthroughFS mirrors the directory tree rooted at RawPath, remapping
// every node's reported owner to UID/GID (spec.md §6 mount option uid=/gid=
// mirrored at the FUSE layer so both views present the same ownership).
type PassthroughFS struct {
	RawPath  string
	UID, GID uint32
}

func (p *PassthroughFS) Root() (fs.Node, error) {
	return &dir{fs: p, rel: ""}, nil
}

type dir struct {
	fs  *PassthroughFS
	rel string
}

func (d *dir) real() string { return filepath.Join(d.fs.RawPath, d.rel) }

func (d *dir) Attr(ctx context.Context, a *fuse.Attr) error {
	return statAttr(d.real(), d.fs.UID, d.fs.GID, a)
}

func (d *dir) Lookup(ctx context.Context, name string) (fs.Node, error) {
	child := filepath.Join(d.real(), name)
	fi, err := os.Lstat(child)
	if err != nil {
		return nil, fuse.ENOENT
	}
	rel := filepath.Join(d.rel, name)
	if fi.IsDir() {
		return &dir{fs: d.fs, rel: rel}, nil
	}
	return &file{fs: d.fs, rel: rel}, nil
}

func (d *dir) ReadDirAll(ctx context.Context) ([]fuse.Dirent, error) {
	entries, err := os.ReadDir(d.real())
	if err != nil {
		return nil, err
	}

	dirents := make([]fuse.Dirent, 0, len(entries))
	for i, e := range entries {
		typ := fuse.DT_File
		if e.IsDir() {
			typ = fuse.DT_Dir
		}
		dirents = append(dirents, fuse.Dirent{Inode: uint64(i) + 1, Name: e.Name(), Type: typ})
	}
	return dirents, nil
}

// file is a passthrough leaf backed by the real file at fs.RawPath/rel.
type file struct {
	fs  *PassthroughFS
	rel string

	mu sync.Mutex
}

func (f *file) real() string { return filepath.Join(f.fs.RawPath, f.rel) }

func (f *file) Attr(ctx context.Context, a *fuse.Attr) error {
	return statAttr(f.real(), f.fs.UID, f.fs.GID, a)
}

func (f *file) ReadAll(ctx context.Context) ([]byte, error) {
	return os.ReadFile(f.real())
}

func (f *file) Read(ctx context.Context, req *fuse.ReadRequest, resp *fuse.ReadResponse) error {
	osf, err := os.Open(f.real())
	if err != nil {
		return err
	}
	defer osf.Close()

	buf := make([]byte, req.Size)
	n, err := osf.ReadAt(buf, req.Offset)
	if err != nil && err != io.EOF {
		return err
	}
	resp.Data = buf[:n]
	return nil
}

func (f *file) Write(ctx context.Context, req *fuse.WriteRequest, resp *fuse.WriteResponse) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	osf, err := os.OpenFile(f.real(), os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	defer osf.Close()

	n, err := osf.WriteAt(req.Data, req.Offset)
	if err != nil {
		return err
	}
	resp.Size = n
	return nil
}

func statAttr(path string, uid, gid uint32, a *fuse.Attr) error {
	fi, err := os.Stat(path)
	if err != nil {
		return fuse.ENOENT
	}
	if fi.IsDir() {
		a.Mode = os.ModeDir | 0755
	} else {
		a.Mode = fi.Mode().Perm()
	}
	a.Size = uint64(fi.Size())
	a.Mtime = fi.ModTime()
	a.Uid = uid
	a.Gid = gid
	return nil
}
