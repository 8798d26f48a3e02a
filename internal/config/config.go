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

// Package config loads the daemon's runtime configuration. It collapses the
// original source's #ifdef build variants (automotive, Tuxera fs-driver
// pack, CD-ROM support, prepared-stage removal — spec.md §9) into ordinary
// fields read once at startup.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config is the daemon's runtime configuration.
type Config struct {
	// MultiMount enables mounting additional partitions of a multi-partition
	// disk under <mountpoint>/<label>{2,3,...} (spec.md §4.3.2 step i).
	MultiMount bool `mapstructure:"multi_mount"`

	// FSChecksDisabled skips the check() step of the mount pipeline
	// (spec.md §4.3.2 step b, tcc.checkdisk.disable*).
	FSChecksDisabled bool `mapstructure:"fs_checks_disabled"`

	// MountLargestPartition selects the auto-pick policy for
	// initMountpoint: true picks the largest partition by size, false
	// picks the first non-empty one (spec.md §4.4.5).
	MountLargestPartition bool `mapstructure:"mount_largest_partition"`

	// PreparedStageBroadcast enables the optional pre-mount
	// VolumeDiskPrepared broadcast (spec.md §4.6, "prepared stage").
	PreparedStageBroadcast bool `mapstructure:"prepared_stage_broadcast"`

	// NOFUSEDefault is the default value of the NOFUSE flag for volumes
	// whose fstab record doesn't specify it explicitly.
	NOFUSEDefault bool `mapstructure:"nofuse_default"`

	// USBReadWriteFilesystems lists filesystem names that may be mounted
	// read-write under /storage/usb* (spec.md §6 mountpoint classification).
	// FAT is always read-write there; this adds to that set (e.g. "exfat",
	// "ntfs" on builds where the Tuxera pack provides read-write drivers).
	USBReadWriteFilesystems []string `mapstructure:"usb_readwrite_filesystems"`

	// EncryptedBoot mirrors ro.crypto.state == "encrypted" (spec.md §4.3.2
	// step 4); normally derived from the property store, but overridable.
	EncryptedBoot bool `mapstructure:"encrypted_boot"`
}

// Default returns the configuration matching vold's historical defaults.
func Default() Config {
	return Config{
		MultiMount:             true,
		FSChecksDisabled:       false,
		MountLargestPartition:  true,
		PreparedStageBroadcast: true,
		NOFUSEDefault:          false,
		USBReadWriteFilesystems: []string{"fat"},
	}
}

// Load reads a YAML/JSON/TOML config file (any format viper supports) from
// path, applying Default() for anything unset.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("config: unmarshal %s: %w", path, err)
	}
	return cfg, nil
}

// IsUSBReadWrite reports whether fsType may be mounted read-write under a
// /storage/usb* mountpoint.
func (c Config) IsUSBReadWrite(fsType string) bool {
	for _, f := range c.USBReadWriteFilesystems {
		if f == fsType {
			return true
		}
	}
	return false
}
