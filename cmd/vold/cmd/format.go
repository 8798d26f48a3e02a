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
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/deviceos-project/vold/internal/volume"
)

func DefineFormatCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "format <label>",
		Short:        "Run the format pipeline (format_req) for one volume",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE:         RunFormat,
	}
	cmd.Flags().String("fstype", "", `requested filesystem ("ntfs" or empty for the default FAT/exFAT gate)`)
	cmd.Flags().Bool("whole-device", false, "format the whole disk rather than a single partition")
	cmd.Flags().Uint64("size-bytes", 0, "target size in bytes, used by the exFAT-vs-FAT SDXC gate")
	cmd.Flags().Uint64("num-sectors", 0, "target size in 512-byte sectors")
	return cmd
}

func RunFormat(cmd *cobra.Command, args []string) error {
	d, err := newDaemon(cmd)
	if err != nil {
		return err
	}

	dv, err := d.find(args[0])
	if err != nil {
		return err
	}

	fsType, _ := cmd.Flags().GetString("fstype")
	wholeDevice, _ := cmd.Flags().GetBool("whole-device")
	sizeBytes, _ := cmd.Flags().GetUint64("size-bytes")
	numSectors, _ := cmd.Flags().GetUint64("num-sectors")

	target := volume.FormatTarget{
		Path:        dv.DiskDevicePath(),
		WholeDevice: wholeDevice,
		SizeBytes:   sizeBytes,
		NumSectors:  numSectors,
	}
	if !wholeDevice {
		target.Path = dv.ShareDevicePath()
	}

	d.Log.Infof("formatting %s (%s) as %s", dv.Label, humanize.Bytes(sizeBytes), fsTypeLabel(fsType))

	if verr := d.Pipe.Format(dv.Volume, target, fsType); verr != nil {
		return verr
	}
	d.Metrics.FormatTotal.WithLabelValues(dv.Label, fsTypeLabel(fsType)).Inc()
	return nil
}

func fsTypeLabel(requested string) string {
	if requested == "" {
		return "auto"
	}
	return requested
}
