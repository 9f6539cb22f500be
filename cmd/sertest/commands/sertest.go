// Copyright (C) 2021 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package commands

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/segmentio/analytics-go/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	sertestAnalytics "github.com/toitlang/sertest/cmd/sertest/analytics"
	"github.com/toitlang/sertest/cmd/sertest/directory"
	"github.com/toitlang/sertest/cmd/sertest/session"
)

type Info struct {
	Version string `mapstructure:"version" yaml:"version" json:"version"`
	Date    string `mapstructure:"date" yaml:"date" json:"date"`
}

func SertestCmd(info Info, isReleaseBuild bool) *cobra.Command {
	var analyticsClient sertestAnalytics.Client

	cmd := &cobra.Command{
		Use:   "sertest [device]",
		Short: "Exercise microcontroller firmware over a serial link",
		Long: "Sertest opens the serial port (which usually resets the board), waits for the\n" +
			"board to send 'Q', answers 'X', prints the greeting line and then sends the\n" +
			"command script one line at a time, printing every reply. When all commands\n" +
			"are sent it keeps printing whatever the board sends until interrupted.\n\n" +
			"The device is a serial port like /dev/ttyACM0 or COM3, or tcp://host:port\n" +
			"for a serial-over-TCP bridge or 'sertest simulate'.",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			client, err := sertestAnalytics.GetClient()
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "Warning: analytics disabled:", err)
				return
			}
			analyticsClient = client

			properties := analytics.NewProperties().
				Set("command", cmd.UseLine()).
				Set("platform", runtime.GOOS)
			if isReleaseBuild {
				properties.Set("version", info.Version)
			} else {
				properties.Set("version", "development")
			}
			analyticsClient.Enqueue(analytics.Page{
				Name:       "CLI Execute",
				Properties: properties,
			})
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if analyticsClient != nil {
				analyticsClient.Close()
			}
		},
		RunE: runSession,
	}

	cmd.Flags().StringP("script", "s", "", "YAML file with the commands to send (default: built-in lab table)")
	addConnectionFlags(cmd.Flags())

	cmd.AddCommand(
		MonitorCmd(),
		PortsCmd(),
		SetPortCmd(),
		SimulateCmd(),
		ConfigCmd(),
		VersionCmd(info, isReleaseBuild),
	)
	return cmd
}

func addConnectionFlags(flags *pflag.FlagSet) {
	flags.Int(directory.BaudCfgKey, directory.DefaultBaud, "the baud rate of the serial port")
	flags.Duration(directory.TimeoutCfgKey, directory.DefaultTimeout, "how long a single read waits for data")
}

// bindFlags makes the given flags override the matching configuration keys
// when they are set on the command line.
func bindFlags(cfg *viper.Viper, flags *pflag.FlagSet, keys ...string) error {
	for _, key := range keys {
		flag := flags.Lookup(key)
		if flag == nil {
			continue
		}
		if err := cfg.BindPFlag(key, flag); err != nil {
			return err
		}
	}
	return nil
}

// loadSettings merges user config, environment and the command's flags.
func loadSettings(cmd *cobra.Command) (*directory.Settings, error) {
	cfg, err := directory.GetSettingsConfig()
	if err != nil {
		return nil, err
	}
	keys := []string{directory.BaudCfgKey, directory.TimeoutCfgKey, directory.ScriptCfgKey}
	if err := bindFlags(cfg, cmd.Flags(), keys...); err != nil {
		return nil, err
	}
	return directory.GetSettings(cfg)
}

func runSession(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	commands := session.DefaultCommands()
	if settings.Script != "" {
		if commands, err = LoadScript(settings.Script); err != nil {
			return err
		}
	}

	device := settings.Port
	if len(args) == 1 {
		device = args[0]
	}
	if device, err = CheckPort(device); err != nil {
		return err
	}

	console := session.NewConsole(cmd.OutOrStdout())
	console.Println("connecting to port", device)
	s, err := session.Dial(&session.Config{
		Device:      device,
		BaudRate:    settings.Baud,
		ReadTimeout: settings.Timeout,
	}, commands, session.WithConsole(console))
	if err != nil {
		return err
	}
	defer s.Close()

	return ignoreCanceled(s.Run(cmd.Context()))
}

// ignoreCanceled turns an interrupted run into a clean exit.
func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
