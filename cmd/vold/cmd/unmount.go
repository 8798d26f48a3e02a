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
	"github.com/spf13/cobra"

	"github.com/deviceos-project/vold/internal/procwait"
	"github.com/deviceos-project/vold/internal/volume"
)

func DefineUnmountCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "unmount <label>",
		Short:        "Run the unmount pipeline (unmount_req) for one volume",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE:         RunUnmount,
	}
	cmd.Flags().Bool("revert-crypto", false, "request crypto remap be reverted once unmounted")
	return cmd
}

func RunUnmount(cmd *cobra.Command, args []string) error {
	d, err := newDaemon(cmd)
	if err != nil {
		return err
	}

	dv, err := d.find(args[0])
	if err != nil {
		return err
	}

	revertCrypto, _ := cmd.Flags().GetBool("revert-crypto")
	opts := volume.UnmountOptions{Killer: procwait.NoopKiller{}, RevertCrypto: revertCrypto}

	if verr := d.Pipe.Unmount(dv.Volume, opts); verr != nil {
		return verr
	}
	d.Metrics.UnmountTotal.WithLabelValues(dv.Label).Inc()
	d.Log.Infof("unmounted %s", dv.Label)
	return nil
}
