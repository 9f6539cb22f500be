package device

import (
	"bytes"
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toitlang/sertest/cmd/sertest/session"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func startSimulator(t *testing.T, cfg Config) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		ListenAndServe(ctx, ln, cfg, nil, nil)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return "tcp://" + ln.Addr().String()
}

func TestDevice_Reply(t *testing.T) {
	d := New(nil, Config{Reply: "ACK %s"})
	assert.Equal(t, "ACK VA10", d.reply("VA10"))

	d = New(nil, Config{Reply: "OK"})
	assert.Equal(t, "OK", d.reply("VA10"))

	d = New(nil, Config{Reply: "ACK %s %d 100%"})
	assert.Equal(t, "ACK VA10 %d 100%", d.reply("VA10"))

	d = New(nil, Config{Reply: "%s=%s"})
	assert.Equal(t, "VA10=VA10", d.reply("VA10"))
}

func TestListenAndServe_ReportsDisconnect(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.ReadTimeout = 20 * time.Millisecond
	type disconnect struct {
		addr net.Addr
		err  error
	}
	connected := make(chan net.Addr, 1)
	disconnected := make(chan disconnect, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ListenAndServe(ctx, ln, cfg,
			func(addr net.Addr) { connected <- addr },
			func(addr net.Addr, err error) { disconnected <- disconnect{addr, err} })
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	var addr net.Addr
	select {
	case addr = <-connected:
	case <-time.After(5 * time.Second):
		t.Fatal("no connection reported")
	}
	require.NoError(t, conn.Close())

	select {
	case d := <-disconnected:
		assert.Equal(t, addr.String(), d.addr.String())
		assert.Error(t, d.err)
	case <-time.After(5 * time.Second):
		t.Fatal("no disconnect reported")
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestDevice_SessionAgainstSimulator(t *testing.T) {
	color.NoColor = true

	cfg := DefaultConfig()
	cfg.ReadTimeout = 50 * time.Millisecond
	addr := startSimulator(t, cfg)

	out := &lockedBuffer{}
	s, err := session.Dial(&session.Config{Device: addr, ReadTimeout: 200 * time.Millisecond},
		[]string{"CAFirst", "VA15\nVA20"},
		session.WithConsole(session.NewConsole(out)))
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		text := out.String()
		return strings.Contains(text, "SENDING DONE") &&
			strings.Contains(text, `"ACK VA20\n"`)
	}, 10*time.Second, 20*time.Millisecond)

	text := out.String()
	assert.Contains(t, text, "Sync\n")
	assert.Contains(t, text, `BASIC\n"`, "sync bytes sent before the acknowledgment may precede the greeting")
	assert.Contains(t, text, `"ACK CAFirst\n"`)
	assert.Contains(t, text, `"ACK VA15\n"`)
	assert.Less(t, strings.Index(text, "SETUP COMPLETE"), strings.Index(text, "> WRT: CAFirst"))

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("session did not stop after cancel")
	}
	assert.Equal(t, session.Idle, s.State())
}

func TestDevice_KeepsSyncingUntilAcknowledged(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ReadTimeout = 20 * time.Millisecond
	addr := startSimulator(t, cfg)

	conn, err := net.Dial("tcp", strings.TrimPrefix(addr, "tcp://"))
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var got []byte
	buf := make([]byte, 16)
	for bytes.Count(got, []byte("Q")) < 3 {
		n, err := conn.Read(buf)
		require.NoError(t, err)
		got = append(got, buf[:n]...)
	}
	assert.Equal(t, strings.Repeat("Q", len(got)), string(got))

	_, err = conn.Write([]byte("X"))
	require.NoError(t, err)

	var rest []byte
	for !bytes.Contains(rest, []byte("BASIC\n")) {
		n, err := conn.Read(buf)
		require.NoError(t, err)
		rest = append(rest, buf[:n]...)
	}
	assert.Equal(t, "BASIC\n", strings.TrimLeft(string(rest), "Q"))
}
