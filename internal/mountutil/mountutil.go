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

// Package mountutil inspects /proc/mounts to answer the single question the
// mount pipeline needs before it starts: is this mountpoint already
// mounted? (spec.md §4.3.2 step 2, "workaround for a known kernel race".)
package mountutil

import (
	"fmt"

	"github.com/moby/sys/mountinfo"
)

// IsMounted reports whether target is currently a mountpoint.
func IsMounted(target string) (bool, error) {
	mounted, err := mountinfo.Mounted(target)
	if err != nil {
		return false, fmt.Errorf("mountutil: check %s: %w", target, err)
	}
	return mounted, nil
}

// MountsUnder returns every current mount whose mountpoint is target or a
// descendant of it, deepest-first — the order the unmount pipeline tears
// down multi-mount sub-partitions in (spec.md §4.3.3, "in reverse").
func MountsUnder(target string) ([]*mountinfo.Info, error) {
	infos, err := mountinfo.GetMounts(mountinfo.PrefixFilter(target))
	if err != nil {
		return nil, fmt.Errorf("mountutil: list mounts under %s: %w", target, err)
	}
	for i, j := 0, len(infos)-1; i < j; i, j = i+1, j-1 {
		infos[i], infos[j] = infos[j], infos[i]
	}
	return infos, nil
}
