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
)

func DefineShareCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "share <label> <method>",
		Short:        "Expose a volume's device node as a USB mass-storage gadget",
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE:         RunShare,
	}
	return cmd
}

func RunShare(cmd *cobra.Command, args []string) error {
	d, err := newDaemon(cmd)
	if err != nil {
		return err
	}
	if verr := d.Manager.Share(args[0], args[1]); verr != nil {
		return verr
	}
	d.Log.Infof("shared %s via %s", args[0], args[1])
	return nil
}

func DefineUnshareCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "unshare <label> <method>",
		Short:        "Reverse a previous share",
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE:         RunUnshare,
	}
	return cmd
}

func RunUnshare(cmd *cobra.Command, args []string) error {
	d, err := newDaemon(cmd)
	if err != nil {
		return err
	}
	if verr := d.Manager.Unshare(args[0], args[1]); verr != nil {
		return verr
	}
	d.Log.Infof("unshared %s via %s", args[0], args[1])
	return nil
}
