// Copyright (C) 2021 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package commands

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/toitlang/sertest/cmd/sertest/analytics"
	"github.com/toitlang/sertest/cmd/sertest/directory"
)

func ConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configure sertest",
		Long: "Configure the sertest command line tool.\n\n" +
			"Stored values can be overridden with SERTEST_PORT, SERTEST_BAUD,\n" +
			"SERTEST_TIMEOUT and SERTEST_SCRIPT.",
	}

	cmd.AddCommand(
		ConfigShowCmd(),
		configValueCmd(directory.PortCfgKey, "the default serial port", parsePortValue),
		configValueCmd(directory.BaudCfgKey, "the default baud rate", parseBaudValue),
		configValueCmd(directory.TimeoutCfgKey, "the default read timeout", parseTimeoutValue),
		configValueCmd(directory.ScriptCfgKey, "the default command script", parseScriptValue),
		ConfigAnalyticsCmd(),
	)
	return cmd
}

func ConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "show",
		Short:        "Print the effective settings",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := directory.GetSettingsConfig()
			if err != nil {
				return err
			}
			settings, err := directory.GetSettings(cfg)
			if err != nil {
				return err
			}
			enc, err := parseOutputFlag(cmd)
			if err != nil {
				return err
			}
			return enc.Encode(settingsView{
				Port:    settings.Port,
				Baud:    settings.Baud,
				Timeout: settings.Timeout.String(),
				Script:  settings.Script,
			})
		},
	}
	addOutputFlag(cmd, "yaml")
	return cmd
}

type settingsView struct {
	Port    string `yaml:"port" json:"port"`
	Baud    int    `yaml:"baud" json:"baud"`
	Timeout string `yaml:"timeout" json:"timeout"`
	Script  string `yaml:"script,omitempty" json:"script,omitempty"`
}

func (s settingsView) Short() string {
	return fmt.Sprintf("%s %d baud, %s timeout", s.Port, s.Baud, s.Timeout)
}

// configValueCmd reads (no argument), stores (one argument) or removes
// (--clear) a single key of the user config.
func configValueCmd(key string, what string, parse func(string) (interface{}, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:          key + " [value]",
		Short:        fmt.Sprintf("Print or store %s", what),
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			clearValue, err := cmd.Flags().GetBool("clear")
			if err != nil {
				return err
			}

			cfg, err := directory.GetUserConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if clearValue {
				if len(args) > 0 {
					return fmt.Errorf("--clear does not take a value")
				}
				if cfg, err = directory.Unset(cfg, key); err != nil {
					return err
				}
				return directory.WriteConfig(cfg)
			}

			if len(args) == 0 {
				if !cfg.IsSet(key) {
					fmt.Fprintf(out, "%s is not set\n", key)
					return nil
				}
				fmt.Fprintln(out, cfg.Get(key))
				return nil
			}

			value, err := parse(args[0])
			if err != nil {
				return err
			}
			cfg.Set(key, value)
			return directory.WriteConfig(cfg)
		},
	}
	cmd.Flags().Bool("clear", false, "remove the stored value")
	return cmd
}

func parsePortValue(s string) (interface{}, error) {
	if s == "" {
		return nil, fmt.Errorf("the port cannot be empty")
	}
	return s, nil
}

func parseBaudValue(s string) (interface{}, error) {
	baud, err := strconv.Atoi(s)
	if err != nil || baud <= 0 {
		return nil, fmt.Errorf("invalid baud rate '%s'", s)
	}
	return baud, nil
}

func parseTimeoutValue(s string) (interface{}, error) {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return nil, fmt.Errorf("invalid read timeout '%s'", s)
	}
	return d.String(), nil
}

func parseScriptValue(s string) (interface{}, error) {
	path, err := filepath.Abs(s)
	if err != nil {
		return nil, err
	}
	if _, err := LoadScript(path); err != nil {
		return nil, err
	}
	return path, nil
}

func ConfigAnalyticsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Configure reporting of anonymous tool usage statistics",
		Long: "Reporting is off by default. It needs 'analytics.endpoint' and\n" +
			"'analytics.write_key' in the user config to be sent anywhere.",
		Args: cobra.NoArgs,
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "enable",
			Short: "Enable reporting of anonymous tool usage statistics",
			Args:  cobra.NoArgs,
			RunE:  configAnalytics(true),
		},
		&cobra.Command{
			Use:   "disable",
			Short: "Disable reporting of anonymous tool usage statistics",
			Args:  cobra.NoArgs,
			RunE:  configAnalytics(false),
		},
	)
	return cmd
}

func configAnalytics(enable bool) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := directory.GetUserConfig()
		if err != nil {
			return err
		}
		return analytics.SetEnabled(cfg, enable)
	}
}
