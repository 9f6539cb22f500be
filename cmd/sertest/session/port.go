// Copyright (C) 2021 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package session

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"go.bug.st/serial"
)

const (
	DefaultBaudRate    = 9600
	DefaultReadTimeout = time.Second

	tcpScheme = "tcp://"
)

// ErrNoPort is returned when no device was given.
var ErrNoPort = errors.New("no serial port given")

// Port is the byte stream a session talks over.
//
// A Read that times out without data returns (0, nil). Any non-nil error is
// fatal to the session.
type Port interface {
	io.ReadWriteCloser
}

// Resetter is implemented by ports that can reboot the attached board by
// toggling the modem control lines.
type Resetter interface {
	Reset() error
}

// Config holds the connection settings.
type Config struct {
	// Device is a serial device ("/dev/ttyACM0", "COM3") or a
	// serial-over-TCP address ("tcp://127.0.0.1:7777").
	Device      string
	BaudRate    int
	ReadTimeout time.Duration
}

// DefaultConfig returns the lab settings: 9600 baud, 8N1, one second read
// timeout and no flow control.
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		BaudRate:    DefaultBaudRate,
		ReadTimeout: DefaultReadTimeout,
	}
}

// Open opens the port described by cfg. Opening a physical port usually
// resets the board.
func Open(cfg *Config) (Port, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Device == "" {
		return nil, ErrNoPort
	}
	timeout := cfg.ReadTimeout
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}
	if strings.HasPrefix(cfg.Device, tcpScheme) {
		return DialTCP(strings.TrimPrefix(cfg.Device, tcpScheme), timeout)
	}
	baud := cfg.BaudRate
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	return openSerialPort(cfg.Device, baud, timeout)
}

// SerialPort is a physical port backed by go.bug.st/serial.
type SerialPort struct {
	serial.Port
	name string
}

var _ Port = (*SerialPort)(nil)
var _ Resetter = (*SerialPort)(nil)

func openSerialPort(name string, baud int, timeout time.Duration) (*SerialPort, error) {
	// go.bug.st/serial never enables RTS/CTS or XON/XOFF, and leaving
	// InitialStatusBits unset keeps the driver defaults for DTR/RTS.
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(name, mode)
	if isPortNotFound(err) {
		return nil, fmt.Errorf("the port '%s' was not found", name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", name, err)
	}

	if err := port.SetReadTimeout(timeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}
	return &SerialPort{Port: port, name: name}, nil
}

func isPortNotFound(err error) bool {
	if err == nil {
		return false
	}
	if os.IsNotExist(err) {
		return true
	}
	var portErr *serial.PortError
	return errors.As(err, &portErr) && portErr.Code() == serial.PortNotFound
}

func (p *SerialPort) Name() string {
	return p.name
}

// Reset reboots the board the same way an auto-reset circuit does.
func (p *SerialPort) Reset() error {
	if err := p.SetDTR(false); err != nil {
		return err
	}
	if err := p.SetRTS(true); err != nil {
		return err
	}
	time.Sleep(100 * time.Millisecond)
	return p.SetRTS(false)
}

// TCPPort carries the serial stream over a TCP connection, as offered by
// ser2net style bridges and by 'sertest simulate'.
type TCPPort struct {
	conn    net.Conn
	timeout time.Duration
}

var _ Port = (*TCPPort)(nil)

// DialTCP connects to a serial-over-TCP endpoint.
func DialTCP(address string, timeout time.Duration) (*TCPPort, error) {
	conn, err := net.DialTimeout("tcp", address, 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", address, err)
	}
	return NewTCPPort(conn, timeout), nil
}

// NewTCPPort wraps an established connection. Reads give up after timeout.
func NewTCPPort(conn net.Conn, timeout time.Duration) *TCPPort {
	return &TCPPort{conn: conn, timeout: timeout}
}

func (t *TCPPort) Read(p []byte) (int, error) {
	if err := t.conn.SetReadDeadline(time.Now().Add(t.timeout)); err != nil {
		return 0, err
	}
	n, err := t.conn.Read(p)
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return n, nil
	}
	return n, err
}

func (t *TCPPort) Write(p []byte) (int, error) {
	return t.conn.Write(p)
}

func (t *TCPPort) Close() error {
	return t.conn.Close()
}

func (t *TCPPort) RemoteAddr() net.Addr {
	return t.conn.RemoteAddr()
}
