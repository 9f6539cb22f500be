// Copyright (C) 2021 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package commands

import (
	"fmt"
	"os"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/toitlang/sertest/cmd/sertest/directory"
	"github.com/toitlang/sertest/cmd/sertest/session"
	"golang.org/x/term"
)

func PortsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "ports",
		Short:        "List the serial ports on this machine",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			all, err := cmd.Flags().GetBool("all")
			if err != nil {
				return err
			}
			enc, err := parseOutputFlag(cmd)
			if err != nil {
				return err
			}

			ports, err := session.ListPorts(all)
			if err != nil {
				return err
			}
			return enc.Encode(portList(ports))
		},
	}

	cmd.Flags().Bool("all", false, "if set, will show all available ports")
	addOutputFlag(cmd, "short")
	return cmd
}

func SetPortCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "set-port",
		Short:        "Select the serial port you want to use",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			all, err := cmd.Flags().GetBool("all")
			if err != nil {
				return err
			}

			port, err := pickPort(all)
			if err != nil {
				return err
			}

			cfg, err := directory.GetUserConfig()
			if err != nil {
				return err
			}
			cfg.Set(directory.PortCfgKey, port)
			if err := directory.WriteConfig(cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Port set to '%s'\n", port)
			return nil
		},
	}

	cmd.Flags().Bool("all", false, "if set, will show all available ports")
	return cmd
}

type portList []session.PortInfo

func (l portList) Elements() []Short {
	res := make([]Short, 0, len(l))
	for _, p := range l {
		res = append(res, p)
	}
	return res
}

// CheckPort returns port, or lets the user pick one when none is given and
// stdin is a terminal.
func CheckPort(port string) (string, error) {
	if port != "" {
		return port, nil
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", fmt.Errorf("no serial port given. Pass the device as argument or store one with 'sertest set-port'")
	}
	return pickPort(false)
}

func pickPort(all bool) (string, error) {
	ports, err := session.ListPorts(all)
	if err != nil {
		return "", err
	}
	if len(ports) == 0 {
		return "", fmt.Errorf("no serial ports detected. Is the board connected? Use --all to see every port")
	}

	items := make([]string, 0, len(ports))
	for _, p := range ports {
		items = append(items, p.Short())
	}
	prompt := promptui.Select{
		Label:     "Choose what serial port you want to use",
		Items:     items,
		Templates: &promptui.SelectTemplates{},
	}

	i, _, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("you didn't select anything")
	}

	return ports[i].Name, nil
}
