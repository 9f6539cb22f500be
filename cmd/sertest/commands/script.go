// Copyright (C) 2021 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package commands

import (
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v2"
)

// Script is a command script file:
//
//	commands:
//	  - CAFirst
//	  - XA5
//	  - "VA15\nVA20"
type Script struct {
	Commands []string `mapstructure:"commands" yaml:"commands"`
}

func LoadScript(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	script, err := ParseScript(b)
	if err != nil {
		return nil, fmt.Errorf("invalid script '%s': %w", path, err)
	}
	return script.Commands, nil
}

func ParseScript(b []byte) (*Script, error) {
	var doc map[string]interface{}
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, err
	}

	var res Script
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused: true,
		Result:      &res,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(doc); err != nil {
		return nil, err
	}
	return &res, nil
}
