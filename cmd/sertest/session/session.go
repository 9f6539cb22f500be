// Copyright (C) 2021 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package session

import (
	"context"
	"fmt"
	"io"
)

const (
	syncByte = 'Q'
	ackByte  = 'X'
)

// State is the position of a session in its script.
type State int

const (
	// AwaitingSync reads single bytes until the device sends 'Q'.
	AwaitingSync State = iota
	// Synced has acknowledged the sync and waits for the greeting line.
	Synced
	// Sending drains, writes and drains once per command.
	Sending
	// Idle prints incoming lines forever.
	Idle
)

func (s State) String() string {
	switch s {
	case AwaitingSync:
		return "AwaitingSync"
	case Synced:
		return "Synced"
	case Sending:
		return "Sending"
	case Idle:
		return "Idle"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type sendPhase int

const (
	drainBefore sendPhase = iota
	write
	drainAfter
)

// Session drives one device through handshake, command list and idle loop.
// It is not safe for concurrent use.
type Session struct {
	port     Port
	reader   *LineReader
	console  *Console
	commands []string

	state State
	phase sendPhase
	next  int
}

type Option func(*Session)

// WithConsole directs the session output to c.
func WithConsole(c *Console) Option {
	return func(s *Session) {
		s.console = c
	}
}

// StartIdle skips handshake and command list, turning the session into a
// plain line monitor.
func StartIdle() Option {
	return func(s *Session) {
		s.state = Idle
	}
}

// New creates a session on an open port. The command list is copied.
func New(port Port, commands []string, opts ...Option) *Session {
	s := &Session{
		port:     port,
		reader:   NewLineReader(port),
		commands: append([]string(nil), commands...),
		state:    AwaitingSync,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.console == nil {
		s.console = NewConsole(nil)
	}
	return s
}

// Dial opens the port described by cfg and creates a session on it.
func Dial(cfg *Config, commands []string, opts ...Option) (*Session, error) {
	port, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	return New(port, commands, opts...), nil
}

// State returns the current state of the session.
func (s *Session) State() State {
	return s.state
}

// Close closes the underlying port.
func (s *Session) Close() error {
	return s.port.Close()
}

// Run steps the session until ctx is cancelled or the port fails. It never
// returns nil: after the command list the session idles until cancelled.
func (s *Session) Run(ctx context.Context) error {
	if s.state == AwaitingSync {
		s.console.Println("waiting for sync")
	}
	for {
		if _, err := s.Step(ctx); err != nil {
			return err
		}
	}
}

// Step performs a single read or write and returns the resulting state.
func (s *Session) Step(ctx context.Context) (State, error) {
	if err := ctx.Err(); err != nil {
		return s.state, err
	}

	var err error
	switch s.state {
	case AwaitingSync:
		err = s.awaitSync()
	case Synced:
		err = s.readGreeting()
	case Sending:
		err = s.send()
	case Idle:
		_, err = s.readLine()
	default:
		err = fmt.Errorf("invalid session state %v", s.state)
	}
	return s.state, err
}

func (s *Session) awaitSync() error {
	b, ok, err := s.reader.NextByte()
	if err != nil {
		return fmt.Errorf("failed to read sync byte: %w", err)
	}
	if !ok {
		s.console.Received(nil)
		return nil
	}
	s.console.Received([]byte{b})
	if b != syncByte {
		return nil
	}
	if err := s.writeAll([]byte{ackByte}); err != nil {
		return fmt.Errorf("failed to acknowledge sync: %w", err)
	}
	s.console.Println("Sync")
	s.state = Synced
	return nil
}

func (s *Session) readGreeting() error {
	line, err := s.reader.ReadLine()
	if err != nil {
		return fmt.Errorf("failed to read greeting: %w", err)
	}
	s.console.Received(line)
	s.console.Println("SETUP COMPLETE")
	s.enterSending()
	return nil
}

func (s *Session) enterSending() {
	s.state = Sending
	s.phase = drainBefore
	s.next = 0
	if len(s.commands) == 0 {
		s.enterIdle()
	}
}

func (s *Session) enterIdle() {
	s.console.Println("##########\nSENDING DONE\n##########")
	s.state = Idle
}

func (s *Session) send() error {
	command := s.commands[s.next]
	switch s.phase {
	case drainBefore:
		line, err := s.readLine()
		if err != nil {
			return err
		}
		if len(line) == 0 {
			s.phase = write
		}
	case write:
		s.console.Sent(command)
		if err := s.writeAll(append([]byte(command), '\n')); err != nil {
			return fmt.Errorf("failed to send %q: %w", command, err)
		}
		s.phase = drainAfter
	case drainAfter:
		line, err := s.readLine()
		if err != nil {
			return err
		}
		if len(line) > 0 {
			return nil
		}
		s.next++
		s.phase = drainBefore
		if s.next == len(s.commands) {
			s.enterIdle()
		}
	}
	return nil
}

// readLine reads one line and prints it unless the read timed out empty.
func (s *Session) readLine() ([]byte, error) {
	line, err := s.reader.ReadLine()
	if err != nil {
		return nil, fmt.Errorf("failed to read from device: %w", err)
	}
	if len(line) > 0 {
		s.console.Received(line)
	}
	return line, nil
}

func (s *Session) writeAll(data []byte) error {
	n, err := s.port.Write(data)
	if err != nil {
		return err
	}
	if n != len(data) {
		return io.ErrShortWrite
	}
	return nil
}
