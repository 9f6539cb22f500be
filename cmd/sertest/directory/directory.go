// Copyright (C) 2021 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package directory

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// UserConfigPathEnv if set, will load the user config from that path.
	UserConfigPathEnv = "SERTEST_USER_CONFIG_PATH"
	// EnvPrefix is the prefix of environment variables overriding config
	// keys, e.g. SERTEST_PORT for "port".
	EnvPrefix = "SERTEST"

	PortCfgKey      = "port"
	BaudCfgKey      = "baud"
	TimeoutCfgKey   = "timeout"
	ScriptCfgKey    = "script"
	AnalyticsCfgKey = "analytics"

	DefaultBaud    = 9600
	DefaultTimeout = time.Second
)

// Settings are the effective session settings after merging defaults, the
// user config file, environment and bound flags.
type Settings struct {
	Port    string        `mapstructure:"port" yaml:"port" json:"port"`
	Baud    int           `mapstructure:"baud" yaml:"baud" json:"baud"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
	Script  string        `mapstructure:"script" yaml:"script,omitempty" json:"script,omitempty"`
}

func GetUserConfigPath() (string, error) {
	if path, ok := os.LookupEnv(UserConfigPathEnv); ok {
		return path, nil
	}

	homedir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homedir, ".config", "sertest", "config.yaml"), nil
}

// GetUserConfig returns the user config file only, without defaults or
// environment. Use it for reading and writing stored values.
func GetUserConfig() (*viper.Viper, error) {
	path, err := GetUserConfigPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get user config path: %w", err)
	}

	cfg := viper.New()
	cfg.SetConfigType("yaml")
	cfg.SetConfigFile(path)
	if _, err := os.Stat(path); err == nil {
		if err := cfg.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read user config: %w", err)
		}
	}
	return cfg, nil
}

// GetSettingsConfig layers defaults and SERTEST_* environment variables on
// top of the user config. Flags can be bound to it before calling Settings.
func GetSettingsConfig() (*viper.Viper, error) {
	cfg, err := GetUserConfig()
	if err != nil {
		return nil, err
	}
	cfg.SetDefault(BaudCfgKey, DefaultBaud)
	cfg.SetDefault(TimeoutCfgKey, DefaultTimeout)
	cfg.SetEnvPrefix(EnvPrefix)
	cfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	for _, key := range []string{PortCfgKey, BaudCfgKey, TimeoutCfgKey, ScriptCfgKey} {
		if err := cfg.BindEnv(key); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// GetSettings decodes the effective settings from cfg.
func GetSettings(cfg *viper.Viper) (*Settings, error) {
	var res Settings
	if err := cfg.Unmarshal(&res); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if res.Baud <= 0 {
		return nil, fmt.Errorf("invalid baud rate %d", res.Baud)
	}
	if res.Timeout <= 0 {
		return nil, fmt.Errorf("invalid read timeout %s", res.Timeout)
	}
	return &res, nil
}

// Unset returns a copy of cfg without key. Viper cannot remove a value that
// was read from the config file, so the remaining settings are moved over.
func Unset(cfg *viper.Viper, key string) (*viper.Viper, error) {
	settings := cfg.AllSettings()
	delete(settings, strings.ToLower(key))

	res := viper.New()
	res.SetConfigType("yaml")
	res.SetConfigFile(cfg.ConfigFileUsed())
	if err := res.MergeConfigMap(settings); err != nil {
		return nil, err
	}
	return res, nil
}

func WriteConfig(cfg *viper.Viper) error {
	file := cfg.ConfigFileUsed()
	dir := filepath.Dir(file)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	tmpFile := filepath.Join(dir, ".config.tmp.yaml")
	if err := cfg.WriteConfigAs(tmpFile); err != nil {
		return err
	}
	defer os.Remove(tmpFile)

	return os.Rename(tmpFile, file)
}
