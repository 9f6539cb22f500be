// Copyright (C) 2021 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package session

import (
	"bytes"
)

// LineReader reads bytes and lines from a Port. Bytes read past the end of a
// line are kept for the next call.
type LineReader struct {
	port    Port
	buf     []byte
	pending []byte
}

func NewLineReader(port Port) *LineReader {
	return &LineReader{
		port: port,
		buf:  make([]byte, 256),
	}
}

// NextByte reads a single byte. ok is false when the read timed out.
func (r *LineReader) NextByte() (b byte, ok bool, err error) {
	if len(r.pending) > 0 {
		b = r.pending[0]
		r.pending = r.pending[1:]
		return b, true, nil
	}
	var one [1]byte
	n, err := r.port.Read(one[:])
	if err != nil {
		return 0, false, err
	}
	if n == 0 {
		return 0, false, nil
	}
	return one[0], true, nil
}

// ReadLine returns the next line including its '\n'. If a read times out
// first, whatever arrived so far is returned instead, which is empty when
// nothing arrived at all.
func (r *LineReader) ReadLine() ([]byte, error) {
	for {
		if i := bytes.IndexByte(r.pending, '\n'); i >= 0 {
			return r.take(i + 1), nil
		}
		n, err := r.port.Read(r.buf)
		if n > 0 {
			r.pending = append(r.pending, r.buf[:n]...)
		}
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return r.take(len(r.pending)), nil
		}
	}
}

func (r *LineReader) take(n int) []byte {
	if n == 0 {
		return nil
	}
	line := append([]byte(nil), r.pending[:n]...)
	r.pending = r.pending[n:]
	if len(r.pending) == 0 {
		r.pending = nil
	}
	return line
}
