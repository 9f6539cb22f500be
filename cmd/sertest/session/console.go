// Copyright (C) 2021 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package session

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

// Console prints what happens on the wire for a human watching the session.
type Console struct {
	w    io.Writer
	sent *color.Color
}

// NewConsole writes to w, or to stdout if w is nil.
func NewConsole(w io.Writer) *Console {
	if w == nil {
		w = os.Stdout
	}
	return &Console{
		w:    w,
		sent: color.New(color.FgCyan, color.Bold),
	}
}

// Received prints raw data from the device, quoted so that control
// characters and timeouts (empty data) stay visible.
func (c *Console) Received(data []byte) {
	fmt.Fprintf(c.w, "%q\n", data)
}

// Sent prints a command just before it goes out.
func (c *Console) Sent(command string) {
	c.sent.Fprintf(c.w, "> WRT: %s\n", command)
}

func (c *Console) Println(a ...interface{}) {
	fmt.Fprintln(c.w, a...)
}

func (c *Console) Printf(format string, a ...interface{}) {
	fmt.Fprintf(c.w, format, a...)
}
