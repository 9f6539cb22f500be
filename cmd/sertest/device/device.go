// Copyright (C) 2021 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

// Package device simulates the lab firmware on the other end of the serial
// link, so that sessions can be exercised without a board.
package device

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/toitlang/sertest/cmd/sertest/session"
)

type Config struct {
	// Greeting is the line sent after the sync acknowledgment.
	Greeting string `mapstructure:"greeting" yaml:"greeting" json:"greeting"`
	// Reply is the answer to a received line. Every "%s" in it is replaced by
	// the received line without its terminator. An empty Reply means no
	// answer.
	Reply string `mapstructure:"reply" yaml:"reply" json:"reply"`
	// ReadTimeout is also the interval between sync bytes.
	ReadTimeout time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
}

func DefaultConfig() Config {
	return Config{
		Greeting:    "BASIC",
		Reply:       "ACK %s",
		ReadTimeout: 250 * time.Millisecond,
	}
}

// Device is one simulated board talking over port.
type Device struct {
	port   session.Port
	reader *session.LineReader
	cfg    Config
	synced bool
}

func New(port session.Port, cfg Config) *Device {
	return &Device{
		port:   port,
		reader: session.NewLineReader(port),
		cfg:    cfg,
	}
}

// Synced reports whether the host has acknowledged the sync byte.
func (d *Device) Synced() bool {
	return d.synced
}

// Serve sends 'Q' once per read timeout until the host answers 'X', greets
// it and then answers every received line until ctx is done or the port
// fails.
func (d *Device) Serve(ctx context.Context) error {
	for !d.synced {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := d.port.Write([]byte{'Q'}); err != nil {
			return fmt.Errorf("failed to send sync: %w", err)
		}
		for {
			b, ok, err := d.reader.NextByte()
			if err != nil {
				return fmt.Errorf("failed to read sync acknowledgment: %w", err)
			}
			if !ok {
				break
			}
			if b == 'X' {
				d.synced = true
				break
			}
		}
	}

	if err := d.writeLine(d.cfg.Greeting); err != nil {
		return fmt.Errorf("failed to send greeting: %w", err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := d.reader.ReadLine()
		if err != nil {
			return fmt.Errorf("failed to read command: %w", err)
		}
		line = bytes.TrimRight(line, "\r\n")
		if len(line) == 0 || d.cfg.Reply == "" {
			continue
		}
		if err := d.writeLine(d.reply(string(line))); err != nil {
			return fmt.Errorf("failed to send reply: %w", err)
		}
	}
}

func (d *Device) reply(line string) string {
	return strings.ReplaceAll(d.cfg.Reply, "%s", line)
}

func (d *Device) writeLine(s string) error {
	_, err := d.port.Write([]byte(s + "\n"))
	return err
}

// ListenAndServe accepts connections on ln and runs one Device per
// connection until ctx is done. onConnect, if not nil, is called for every
// accepted connection and onDisconnect, if not nil, with the error that
// ended it.
func ListenAndServe(ctx context.Context, ln net.Listener, cfg Config, onConnect func(net.Addr), onDisconnect func(net.Addr, error)) error {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultConfig().ReadTimeout
	}
	var wg sync.WaitGroup
	defer wg.Wait()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if onConnect != nil {
			onConnect(conn.RemoteAddr())
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer conn.Close()
			connCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			go func() {
				<-connCtx.Done()
				conn.Close()
			}()
			err := New(session.NewTCPPort(conn, cfg.ReadTimeout), cfg).Serve(connCtx)
			if onDisconnect != nil {
				onDisconnect(conn.RemoteAddr(), err)
			}
		}()
	}
}
