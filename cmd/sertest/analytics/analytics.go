// Copyright (C) 2021 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package analytics

import (
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/analytics-go/v3"
	"github.com/spf13/viper"
	"github.com/toitlang/sertest/cmd/sertest/directory"
)

// Config is stored under the "analytics" key of the user config. Reporting
// only happens when it is enabled and both Endpoint and WriteKey are set.
type Config struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	ClientID string `mapstructure:"cid" yaml:"cid" json:"cid"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint" json:"endpoint"`
	WriteKey string `mapstructure:"write_key" yaml:"write_key" json:"write_key"`
}

func (c Config) active() bool {
	return c.Enabled && c.Endpoint != "" && c.WriteKey != ""
}

// ReadConfig returns the stored analytics settings.
func ReadConfig(cfg *viper.Viper) (Config, error) {
	var res Config
	if !cfg.IsSet(directory.AnalyticsCfgKey) {
		return res, nil
	}
	err := cfg.UnmarshalKey(directory.AnalyticsCfgKey, &res)
	return res, err
}

// SetEnabled stores the analytics switch, creating a client id the first
// time reporting is enabled.
func SetEnabled(cfg *viper.Viper, enabled bool) error {
	res, err := ReadConfig(cfg)
	if err != nil {
		return err
	}
	res.Enabled = enabled
	if enabled && res.ClientID == "" {
		res.ClientID = uuid.New().String()
	}
	cfg.Set(directory.AnalyticsCfgKey, res)
	return directory.WriteConfig(cfg)
}

type Client interface {
	Enqueue(analytics.Message) error
	Close() error
}

// GetClient returns a reporting client, or a client that drops everything
// if reporting is not configured.
func GetClient() (Client, error) {
	cfg, err := directory.GetUserConfig()
	if err != nil {
		return nil, err
	}
	res, err := ReadConfig(cfg)
	if err != nil || !res.active() {
		return noopClient{}, nil
	}
	if res.ClientID == "" {
		res.ClientID = uuid.New().String()
		cfg.Set(directory.AnalyticsCfgKey, res)
		if err := directory.WriteConfig(cfg); err != nil {
			return nil, err
		}
	}

	client, err := analytics.NewWithConfig(res.WriteKey, analytics.Config{
		Interval:  time.Millisecond,
		BatchSize: 1,
		Endpoint:  res.Endpoint,
		Logger:    noopLogger{},
	})
	if err != nil {
		return nil, err
	}

	return &proxyClient{
		Client:      client,
		anonymousID: res.ClientID,
	}, nil
}

type noopLogger struct{}

func (noopLogger) Logf(format string, args ...interface{})   {}
func (noopLogger) Errorf(format string, args ...interface{}) {}

type noopClient struct{}

func (noopClient) Enqueue(analytics.Message) error { return nil }
func (noopClient) Close() error                    { return nil }

type proxyClient struct {
	analytics.Client
	anonymousID string
}

func (c *proxyClient) Enqueue(msg analytics.Message) error {
	return c.Client.Enqueue(populate(msg, c.anonymousID))
}

func populate(msg analytics.Message, anonymousID string) analytics.Message {
	switch t := msg.(type) {
	case analytics.Page:
		if t.AnonymousId == "" {
			t.AnonymousId = anonymousID
		}
		return t
	case analytics.Track:
		if t.AnonymousId == "" {
			t.AnonymousId = anonymousID
		}
		return t
	default:
		return msg
	}
}
