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
package blockdev

import (
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
)

// MappedRegion is a memory-mapped, read-only view of part of a block device
// or disk image, for callers that want to inspect a large region without
// copying it through ReadAt first (the fs probes themselves read through
// the plain io.ReaderAt each device already exposes, not through this).
type MappedRegion struct {
	data mmap.MMap
	file *os.File
}

// MapRegion maps [offset, offset+length) of the file at path for reading.
// offset must be a multiple of the OS page size; callers that need an
// unaligned view should round offset down and adjust within Data().
func MapRegion(path string, offset int64, length int) (*MappedRegion, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("blockdev: open %s for mmap: %w", path, err)
	}

	m, err := mmap.MapRegion(f, length, mmap.RDONLY, 0, offset)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("blockdev: mmap %s at %d len %d: %w", path, offset, length, err)
	}

	return &MappedRegion{data: m, file: f}, nil
}

func (r *MappedRegion) Data() []byte { return r.data }

func (r *MappedRegion) Close() error {
	err := r.data.Unmap()
	if cerr := r.file.Close(); err == nil {
		err = cerr
	}
	return err
}
