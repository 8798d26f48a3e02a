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

// Package metrics exposes the daemon's operational counters and gauges to
// Prometheus: mounts attempted/failed, unsafe removals, and the current
// distribution of volumes across states (spec.md is silent on metrics; this
// is ambient-stack wiring the SPEC_FULL.md domain stack calls for).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry bundles every metric the daemon publishes. NewRegistry builds
// one and registers every metric against the prometheus.Registerer it is
// given; NewTestRegistry supplies a private registry for tests.
type Registry struct {
	MountAttempts  *prometheus.CounterVec
	MountFailures  *prometheus.CounterVec
	UnmountTotal   *prometheus.CounterVec
	UnsafeRemovals *prometheus.CounterVec
	FormatTotal    *prometheus.CounterVec
	VolumesByState *prometheus.GaugeVec
}

// NewRegistry registers and returns the daemon's metric set against reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)

	return &Registry{
		MountAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vold",
			Name:      "mount_attempts_total",
			Help:      "Mount attempts per volume label.",
		}, []string{"label"}),
		MountFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vold",
			Name:      "mount_failures_total",
			Help:      "Mount attempts that exhausted every candidate partition.",
		}, []string{"label"}),
		UnmountTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vold",
			Name:      "unmount_total",
			Help:      "Unmount operations per volume label.",
		}, []string{"label"}),
		UnsafeRemovals: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vold",
			Name:      "unsafe_removals_total",
			Help:      "Disk-remove events observed while a volume was mounted, checking, or shared.",
		}, []string{"label"}),
		FormatTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vold",
			Name:      "format_total",
			Help:      "Format operations per volume label and chosen filesystem.",
		}, []string{"label", "fstype"}),
		VolumesByState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "vold",
			Name:      "volumes_by_state",
			Help:      "Number of registered volumes currently in each state.",
		}, []string{"state"}),
	}
}

// NewTestRegistry builds a Registry against a private prometheus.Registry,
// safe to construct repeatedly in tests without colliding with the global
// DefaultRegisterer.
func NewTestRegistry() (*Registry, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewRegistry(reg), reg
}
