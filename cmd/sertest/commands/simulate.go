// Copyright (C) 2021 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package commands

import (
	"fmt"
	"net"
	"sync"

	"github.com/spf13/cobra"
	"github.com/toitlang/sertest/cmd/sertest/device"
)

func SimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Simulate a board on a TCP port",
		Long: "Simulate the lab firmware on a TCP port. The simulated board sends 'Q' until it\n" +
			"receives 'X', then sends the greeting and answers every line it receives.\n" +
			"Run a session against it with 'sertest tcp://<address>'.",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			listen, err := cmd.Flags().GetString("listen")
			if err != nil {
				return err
			}

			cfg := device.DefaultConfig()
			if cfg.Greeting, err = cmd.Flags().GetString("greeting"); err != nil {
				return err
			}
			if cfg.Reply, err = cmd.Flags().GetString("reply"); err != nil {
				return err
			}
			if cfg.ReadTimeout, err = cmd.Flags().GetDuration("interval"); err != nil {
				return err
			}

			ln, err := net.Listen("tcp", listen)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Simulating a board on tcp://%s\n", ln.Addr())
			var mu sync.Mutex
			err = device.ListenAndServe(cmd.Context(), ln, cfg, func(addr net.Addr) {
				mu.Lock()
				defer mu.Unlock()
				fmt.Fprintf(out, "Connection from %s\n", addr)
			}, func(addr net.Addr, err error) {
				mu.Lock()
				defer mu.Unlock()
				fmt.Fprintf(out, "Connection from %s closed: %v\n", addr, err)
			})
			return ignoreCanceled(err)
		},
	}

	defaults := device.DefaultConfig()
	cmd.Flags().StringP("listen", "l", "127.0.0.1:7777", "address to listen on")
	cmd.Flags().String("greeting", defaults.Greeting, "line sent after the sync")
	cmd.Flags().String("reply", defaults.Reply, "answer to every received line, %s is the line")
	cmd.Flags().Duration("interval", defaults.ReadTimeout, "interval between sync bytes")
	return cmd
}
