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

// Package fstab models the subset of a fstab record vold needs to build a
// managed volume (spec.md §6 "Input: fstab record"). Parsing the on-disk
// fstab file format itself is out of scope (named external collaborator);
// this package is the record shape the core consumes plus an in-memory
// loader for tests and simple deployments.
package fstab

import "fmt"

// Flag is a bit in a Record's Flags field.
type Flag uint32

const (
	VoldManaged Flag = 1 << iota
	NonRemovable
	Encryptable
	NoEmulatedSD
	NoFUSE
	ProvidesAsec
)

func (f Flag) Has(bit Flag) bool { return f&bit != 0 }

// Record is one parsed fstab entry for a vold-managed volume.
type Record struct {
	Label       string
	MountPoint  string // must literally be "auto"
	FSType      string
	BlkDevice   string   // primary sysfs prefix
	BlkDevice2  []string // additional sysfs prefixes
	Flags       Flag
}

// Validate checks the invariants spec.md §6 requires of a fstab record.
func (r Record) Validate() error {
	if r.Label == "" {
		return fmt.Errorf("fstab: record has no label")
	}
	if r.MountPoint != "auto" {
		return fmt.Errorf("fstab: record %q must have mount_point \"auto\", got %q", r.Label, r.MountPoint)
	}
	if r.BlkDevice == "" {
		return fmt.Errorf("fstab: record %q has no blk_device", r.Label)
	}
	return nil
}

// SysfsPaths returns every sysfs-path prefix this record is bound to, in
// order: the primary blk_device first, then blk_device2 entries.
func (r Record) SysfsPaths() []string {
	paths := make([]string, 0, 1+len(r.BlkDevice2))
	paths = append(paths, r.BlkDevice)
	paths = append(paths, r.BlkDevice2...)
	return paths
}

// Table is an in-memory ordered collection of fstab records, the loader
// used in place of parsing a real fstab file.
type Table struct {
	records []Record
}

func NewTable(records ...Record) (*Table, error) {
	t := &Table{}
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return nil, err
		}
		t.records = append(t.records, r)
	}
	return t, nil
}

func (t *Table) Records() []Record { return append([]Record(nil), t.records...) }
