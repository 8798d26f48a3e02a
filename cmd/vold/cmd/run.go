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
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/deviceos-project/vold/internal/event"
)

func DefineRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the volume manager daemon",
		Long: `The 'run' command starts the volume registry and dispatch loop.
Kernel hot-plug decoding is an external collaborator (spec.md Non-goals); this
reads already-decoded events as newline-delimited records on stdin, one per
line, in the form "add disk 8 0 nparts=2" / "add partition 8 1 partn=1" /
"remove disk 8 0", and dispatches each to the matching registered volume.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         RunDaemon,
	}
	return cmd
}

func RunDaemon(cmd *cobra.Command, args []string) error {
	d, err := newDaemon(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	d.Log.Infof("vold started, %d volumes registered", len(d.Manager.Volumes()))

	errc := make(chan error, 1)
	go func() { errc <- dispatchLoop(ctx, d, os.Stdin) }()

	select {
	case <-ctx.Done():
		d.Log.Info("shutting down")
		return nil
	case err := <-errc:
		return err
	}
}

func dispatchLoop(ctx context.Context, d *daemon, r *os.File) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		ev, err := parseEventLine(sc.Text())
		if err != nil {
			d.Log.Warnf("run: %v", err)
			continue
		}

		if err := d.Manager.DispatchEvent(ctx, ev); err != nil {
			d.Log.Warnf("run: dispatch %s: %v", ev.DevPath, err)
		}
	}
	return sc.Err()
}

// parseEventLine decodes one demo uevent line of the form:
//
//	<add|remove|change> <disk|partition> <major> <minor> [key=value ...]
func parseEventLine(line string) (event.BlockEvent, error) {
	fields := strings.Fields(line)
	if len(fields) < 4 {
		return event.BlockEvent{}, fmt.Errorf("malformed event line %q", line)
	}

	var ev event.BlockEvent
	ev.NParts, ev.PartN = -1, -1

	switch fields[0] {
	case "add":
		ev.Action = event.Add
	case "remove":
		ev.Action = event.Remove
	case "change":
		ev.Action = event.Change
	default:
		return event.BlockEvent{}, fmt.Errorf("unknown action %q", fields[0])
	}

	switch fields[1] {
	case "disk":
		ev.DevType = event.Disk
	case "partition":
		ev.DevType = event.Partition
	default:
		return event.BlockEvent{}, fmt.Errorf("unknown devtype %q", fields[1])
	}

	major, err := strconv.Atoi(fields[2])
	if err != nil {
		return event.BlockEvent{}, fmt.Errorf("bad major %q: %w", fields[2], err)
	}
	minor, err := strconv.Atoi(fields[3])
	if err != nil {
		return event.BlockEvent{}, fmt.Errorf("bad minor %q: %w", fields[3], err)
	}
	ev.Major, ev.Minor = major, minor
	ev.DevPath = fmt.Sprintf("/devices/block/%d:%d", major, minor)

	for _, kv := range fields[4:] {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			continue
		}
		switch parts[0] {
		case "nparts":
			if n, err := strconv.Atoi(parts[1]); err == nil {
				ev.NParts = n
			}
		case "partn":
			if n, err := strconv.Atoi(parts[1]); err == nil {
				ev.PartN = n
			}
		case "devpath":
			ev.DevPath = parts[1]
		}
	}
	return ev, nil
}
