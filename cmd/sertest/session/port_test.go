package session

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_NoDevice(t *testing.T) {
	_, err := Open(DefaultConfig(""))
	assert.EqualError(t, err, "no serial port given")

	_, err = Open(nil)
	assert.Error(t, err)
}

func TestOpen_MissingSerialPort(t *testing.T) {
	_, err := Open(DefaultConfig("/dev/sertest-does-not-exist"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/dev/sertest-does-not-exist")
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("/dev/ttyACM0")
	assert.Equal(t, "/dev/ttyACM0", cfg.Device)
	assert.Equal(t, 9600, cfg.BaudRate)
	assert.Equal(t, time.Second, cfg.ReadTimeout)
}

func TestTCPPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	port, err := Open(&Config{Device: "tcp://" + ln.Addr().String(), ReadTimeout: 50 * time.Millisecond})
	require.NoError(t, err)
	defer port.Close()

	var server net.Conn
	select {
	case server = <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("no connection accepted")
	}

	buf := make([]byte, 16)
	n, err := port.Read(buf)
	require.NoError(t, err, "a timeout is not an error")
	assert.Equal(t, 0, n)

	_, err = server.Write([]byte("Q"))
	require.NoError(t, err)
	n, err = port.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "Q", string(buf[:n]))

	_, err = port.Write([]byte("X"))
	require.NoError(t, err)
	n, err = server.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "X", string(buf[:n]))

	require.NoError(t, server.Close())
	_, err = port.Read(buf)
	assert.ErrorIs(t, err, io.EOF)
}

func TestFilterPorts(t *testing.T) {
	linux := []string{"/dev/ttyS0", "/dev/ttyUSB0", "/dev/ttyACM0", "/dev/ttyACM1", "/dev/null"}
	assert.Equal(t, []string{"/dev/ttyUSB0", "/dev/ttyACM0", "/dev/ttyACM1"}, FilterPorts("linux", linux))

	darwin := []string{
		"/dev/cu.Bluetooth-Incoming-Port",
		"/dev/tty.Bluetooth-Incoming-Port",
		"/dev/cu.usbmodem1101",
		"/dev/tty.usbmodem1101",
		"/dev/tty.usbserial-10",
	}
	assert.Equal(t, []string{"/dev/cu.usbmodem1101", "/dev/tty.usbserial-10"}, FilterPorts("darwin", darwin))

	windows := []string{"COM1", "COM3"}
	assert.Equal(t, windows, FilterPorts("windows", windows))
}

func TestPortInfoShort(t *testing.T) {
	assert.Equal(t, "COM3", PortInfo{Name: "COM3"}.Short())
	p := PortInfo{Name: "/dev/ttyACM0", USB: true, VID: "2341", PID: "0043", Product: "Arduino Uno"}
	assert.Equal(t, "/dev/ttyACM0 (USB 2341:0043 Arduino Uno)", p.Short())
}
