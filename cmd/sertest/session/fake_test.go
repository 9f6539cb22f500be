package session

import (
	"bytes"
	"errors"
	"sync"

	"github.com/fatih/color"
)

func init() {
	color.NoColor = true
}

var errScriptDone = errors.New("script done")

// fakePort plays back a list of read results. An empty chunk is a read
// timeout. When the script runs out, onDone is called (if set) and every
// further read returns errScriptDone, or times out if onDone is set.
// Writes fail with writeErr once failAfter writes have succeeded, and
// shortWrite drops the last byte of every write.
type fakePort struct {
	chunks [][]byte
	writes [][]byte
	reads  int
	closed bool
	onDone func()

	writeErr   error
	failAfter  int
	shortWrite bool
}

func newFakePort(chunks ...string) *fakePort {
	p := &fakePort{}
	for _, c := range chunks {
		p.chunks = append(p.chunks, []byte(c))
	}
	return p
}

func (p *fakePort) Read(b []byte) (int, error) {
	p.reads++
	if len(p.chunks) == 0 {
		if p.onDone != nil {
			p.onDone()
			return 0, nil
		}
		return 0, errScriptDone
	}
	chunk := p.chunks[0]
	n := copy(b, chunk)
	if n < len(chunk) {
		p.chunks[0] = chunk[n:]
	} else {
		p.chunks = p.chunks[1:]
	}
	return n, nil
}

func (p *fakePort) Write(b []byte) (int, error) {
	if p.writeErr != nil && len(p.writes) >= p.failAfter {
		return 0, p.writeErr
	}
	if p.shortWrite && len(b) > 0 {
		b = b[:len(b)-1]
	}
	p.writes = append(p.writes, append([]byte(nil), b...))
	return len(b), nil
}

func (p *fakePort) Close() error {
	p.closed = true
	return nil
}

func (p *fakePort) writtenStrings() []string {
	var res []string
	for _, w := range p.writes {
		res = append(res, string(w))
	}
	return res
}

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
