// Copyright (C) 2021 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package session

import (
	"fmt"
	"runtime"
	"strings"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// PortInfo describes a detected serial port.
type PortInfo struct {
	Name         string `json:"name" yaml:"name"`
	USB          bool   `json:"usb" yaml:"usb"`
	VID          string `json:"vid,omitempty" yaml:"vid,omitempty"`
	PID          string `json:"pid,omitempty" yaml:"pid,omitempty"`
	SerialNumber string `json:"serial_number,omitempty" yaml:"serial_number,omitempty"`
	Product      string `json:"product,omitempty" yaml:"product,omitempty"`
}

func (p PortInfo) Short() string {
	if !p.USB {
		return p.Name
	}
	desc := fmt.Sprintf("%s (USB %s:%s", p.Name, p.VID, p.PID)
	if p.Product != "" {
		desc += " " + p.Product
	}
	return desc + ")"
}

// ListPorts returns the serial ports on this machine. Unless all is set the
// list is reduced to the ports a microcontroller board is likely to use.
func ListPorts(all bool) ([]PortInfo, error) {
	var res []PortInfo
	details, err := enumerator.GetDetailedPortsList()
	if err == nil {
		for _, d := range details {
			res = append(res, PortInfo{
				Name:         d.Name,
				USB:          d.IsUSB,
				VID:          d.VID,
				PID:          d.PID,
				SerialNumber: d.SerialNumber,
				Product:      d.Product,
			})
		}
	} else {
		names, err := serial.GetPortsList()
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			res = append(res, PortInfo{Name: name})
		}
	}

	if all {
		return res, nil
	}
	keep := map[string]struct{}{}
	for _, name := range FilterPorts(runtime.GOOS, portNames(res)) {
		keep[name] = struct{}{}
	}
	var filtered []PortInfo
	for _, p := range res {
		if _, ok := keep[p.Name]; ok {
			filtered = append(filtered, p)
		}
	}
	return filtered, nil
}

func portNames(ports []PortInfo) []string {
	names := make([]string, 0, len(ports))
	for _, p := range ports {
		names = append(names, p.Name)
	}
	return names
}

// FilterPorts drops ports that are unlikely to be a development board on the
// given OS.
func FilterPorts(goos string, ports []string) []string {
	switch goos {
	case "darwin":
		return darwinFilterPaths(ports)
	case "linux":
		return linuxFilterPaths(ports)
	default:
		return ports
	}
}

func darwinFilterPaths(paths []string) []string {
	existing := map[string]struct{}{}
	for _, p := range paths {
		existing[p] = struct{}{}
	}
	var res []string
	for _, path := range paths {
		if strings.Contains(path, "Bluetooth") {
			continue
		}
		if strings.HasPrefix(path, "/dev/cu") {
			res = append(res, path)
		} else if strings.HasPrefix(path, "/dev/tty") {
			candidate := "/dev/cu" + strings.TrimPrefix(path, "/dev/tty")
			if _, exists := existing[candidate]; !exists {
				res = append(res, path)
			}
		}
	}
	return res
}

func linuxFilterPaths(paths []string) []string {
	var res []string
	for _, path := range paths {
		if strings.Contains(path, "tty") && (strings.Contains(path, "USB") || strings.Contains(path, "ACM")) {
			res = append(res, path)
		}
	}
	return res
}
