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

// Package propstore models the process-wide property store vold reads and
// writes (ro.hardware, vold.decrypt, ctl.start, sys.usb.format, ...). The
// real property service is an external collaborator; this is the interface
// the core consumes from it.
package propstore

import "sync"

// Store is the property-store interface the core consumes.
type Store interface {
	Get(key string) string
	Set(key, value string)
}

// Memory is an in-memory Store, the default when no platform property
// service is wired in (e.g. under test, or on a host without one).
type Memory struct {
	mu    sync.RWMutex
	props map[string]string
}

func NewMemory() *Memory {
	return &Memory{props: map[string]string{}}
}

func (m *Memory) Get(key string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.props[key]
}

func (m *Memory) Set(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.props[key] = value
}

// Well-known property keys read/written per spec.md §6.
const (
	PropHardware       = "ro.hardware"
	PropBootMode       = "ro.bootmode"
	PropVoldDecrypt    = "vold.decrypt"
	PropEncryptProgess = "vold.encrypt_progress"
	PropCryptoState    = "ro.crypto.state"
	PropSamplingProf   = "persist.sampling_profiler"
	PropCheckDiskOff   = "tcc.checkdisk.disable"

	PropPrimaryStorageType = "tcc.primary_storage.type"
	PropUsbFormat          = "sys.usb.format"
)

// UsbFormat values written to PropUsbFormat.
const (
	UsbFormatNone = 0
	UsbFormatFAT  = 1
	UsbFormatExFAT = 2
	UsbFormatNTFS = 3
	UsbFormatOther = 4
)

// CtlStart and CtlStop return the ctl.start / ctl.stop key and value that
// start or stop a FUSE service; there is no ctl.restart helper.
func CtlStart(service string) (key, value string) { return "ctl.start", service }
func CtlStop(service string) (key, value string)  { return "ctl.stop", service }
