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
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/deviceos-project/vold/internal/config"
	"github.com/deviceos-project/vold/internal/directvolume"
	"github.com/deviceos-project/vold/internal/event"
	"github.com/deviceos-project/vold/internal/fsdriver"
	"github.com/deviceos-project/vold/internal/fsprobe"
	"github.com/deviceos-project/vold/internal/fstab"
	"github.com/deviceos-project/vold/internal/metrics"
	"github.com/deviceos-project/vold/internal/propstore"
	"github.com/deviceos-project/vold/internal/verr"
	"github.com/deviceos-project/vold/internal/vlog"
	"github.com/deviceos-project/vold/internal/volmgr"
	"github.com/deviceos-project/vold/internal/volume"
)

// recordConfig is the YAML-facing shape of an fstab record: the fstab
// package itself stays free of a file format (spec.md Non-goal: fstab
// file-format parser), so this thin loader lives at the CLI boundary
// instead, grounded on the teacher's cmd/cmd flag-to-struct glue.
type recordConfig struct {
	Label      string   `mapstructure:"label"`
	MountPoint string   `mapstructure:"mount_point"`
	FSType     string   `mapstructure:"fs_type"`
	BlkDevice  string   `mapstructure:"blk_device"`
	BlkDevice2 []string `mapstructure:"blk_device2"`
	Flags      []string `mapstructure:"flags"`
	PartIdx    int      `mapstructure:"part_idx"`
}

func (r recordConfig) toRecord() fstab.Record {
	var flags fstab.Flag
	for _, f := range r.Flags {
		switch f {
		case "voldmanaged":
			flags |= fstab.VoldManaged
		case "nonremovable":
			flags |= fstab.NonRemovable
		case "encryptable":
			flags |= fstab.Encryptable
		case "noemulatedsd":
			flags |= fstab.NoEmulatedSD
		case "nofuse":
			flags |= fstab.NoFUSE
		case "providesasec":
			flags |= fstab.ProvidesAsec
		}
	}
	return fstab.Record{
		Label:      r.Label,
		MountPoint: r.MountPoint,
		FSType:     r.FSType,
		BlkDevice:  r.BlkDevice,
		BlkDevice2: r.BlkDevice2,
		Flags:      flags,
	}
}

func loadRecords(path string) ([]recordConfig, error) {
	if path == "" {
		return nil, fmt.Errorf("daemon: --fstab is required")
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("daemon: read %s: %w", path, err)
	}

	var wrapper struct {
		Volumes []recordConfig `mapstructure:"volumes"`
	}
	if err := v.Unmarshal(&wrapper); err != nil {
		return nil, fmt.Errorf("daemon: unmarshal %s: %w", path, err)
	}
	return wrapper.Volumes, nil
}

// daemon bundles every collaborator the subcommands need: the volume
// registry, the mount/unmount/format pipeline, and the ambient stack
// (logging, config, metrics, properties, broadcaster).
type daemon struct {
	Cfg     config.Config
	Log     *vlog.Logger
	Props   propstore.Store
	Sink    *event.Sink
	Manager *volmgr.Manager
	Metrics *metrics.Registry
	Pipe    volume.Pipeline
}

func newDaemon(cmd *cobra.Command) (*daemon, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	fstabPath, _ := cmd.Flags().GetString("fstab")
	logLevel, _ := cmd.Flags().GetString("log-level")

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	log := vlog.New(os.Stdout, vlog.ParseLevel(logLevel))
	props := propstore.NewMemory()
	sink := event.NewSink()
	mgr := volmgr.New(sink, props)
	reg, _ := metrics.NewTestRegistry()
	mgr.Metrics = reg

	drivers := volume.Drivers{
		fsprobe.FAT:   fsdriver.NewFAT(),
		fsprobe.ExFAT: fsdriver.NewExFAT(),
		fsprobe.NTFS:  fsdriver.NewNTFS(),
	}
	pipe := volume.Pipeline{
		Cfg:     cfg,
		Props:   props,
		Drivers: drivers,
		Opts:    volume.MountOptions{UID: 1023, GID: 1023, FMask: 0702, DMask: 0702},
	}

	d := &daemon{Cfg: cfg, Log: log, Props: props, Sink: sink, Manager: mgr, Metrics: reg, Pipe: pipe}

	records, err := loadRecords(fstabPath)
	if err != nil {
		return nil, err
	}
	for _, rc := range records {
		rec := rc.toRecord()
		if err := rec.Validate(); err != nil {
			return nil, err
		}

		v := volume.New(rec, log, sink)
		dv := directvolume.New(v, rec.SysfsPaths(), rc.PartIdx, cfg, props)
		dv.Metrics = reg
		dv.MountFn = func() *verr.Error { return pipe.Mount(dv, dv) }
		mgr.Register(dv)
	}

	return d, nil
}

func (d *daemon) find(label string) (*directvolume.DirectVolume, error) {
	dv, ok := d.Manager.Lookup(label)
	if !ok {
		return nil, fmt.Errorf("no such volume %q", label)
	}
	return dv, nil
}
