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
package fsprobe

import (
	"io"
)

const (
	hfsPlusVolumeHeaderOffset = 1024
	hfsPlusSignatureHFSPlus   = "H+"
	hfsPlusSignatureHFSX     = "HX"
)

// probeHFSPlus matches the HFS+/HFSX volume header signature at byte
// offset 1024 (spec.md §4.1). Label extraction requires walking the
// catalog B-tree, which is out of scope (spec.md Non-goals: "HFS+ write
// support"), so a match reports an empty label.
func probeHFSPlus(r io.ReaderAt) (Info, bool, error) {
	buf := make([]byte, 4)
	if _, err := r.ReadAt(buf, hfsPlusVolumeHeaderOffset); err != nil && err != io.EOF {
		return Info{}, false, err
	}

	sig := string(buf[0:2])
	if sig != hfsPlusSignatureHFSPlus && sig != hfsPlusSignatureHFSX {
		return Info{}, false, nil
	}

	return Info{
		FSType: HFSPlus,
		Label:  "",
	}, true, nil
}
