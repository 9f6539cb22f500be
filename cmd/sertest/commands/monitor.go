// Copyright (C) 2021 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package commands

import (
	"github.com/spf13/cobra"
	"github.com/toitlang/sertest/cmd/sertest/session"
)

func MonitorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor [device]",
		Short: "Print the serial output of a board",
		Long: "Print every line the board sends, without the sync handshake and without\n" +
			"sending any commands.",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(cmd)
			if err != nil {
				return err
			}

			reset, err := cmd.Flags().GetBool("reset")
			if err != nil {
				return err
			}

			device := settings.Port
			if len(args) == 1 {
				device = args[0]
			}
			if device, err = CheckPort(device); err != nil {
				return err
			}

			console := session.NewConsole(cmd.OutOrStdout())
			console.Printf("Starting serial monitor of port '%s' ...\n", device)
			port, err := session.Open(&session.Config{
				Device:      device,
				BaudRate:    settings.Baud,
				ReadTimeout: settings.Timeout,
			})
			if err != nil {
				return err
			}
			defer port.Close()

			if reset {
				if r, ok := port.(session.Resetter); ok {
					if err := r.Reset(); err != nil {
						return err
					}
				} else {
					console.Println("Warning: the port cannot reset the board")
				}
			}

			s := session.New(port, nil, session.WithConsole(console), session.StartIdle())
			return ignoreCanceled(s.Run(cmd.Context()))
		},
	}

	cmd.Flags().BoolP("reset", "r", false, "reset the board through DTR/RTS before monitoring")
	addConnectionFlags(cmd.Flags())
	return cmd
}
