// Copyright (C) 2021 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package session

// The lab command table. The first character is the command type, the second
// the channel and the rest the payload; the session sends each entry as an
// opaque line.
var defaultCommands = []string{
	"CAFirst",
	"XA5",
	"VA10",
	"VA15\nVA20",

	"CBSecondary",
	"VB15",
	"CCThird",
	"NC25",
	"VC20",

	"CDFourth",
	"XD20",
	"VD25",
}

// DefaultCommands returns a fresh copy of the built-in command table.
func DefaultCommands() []string {
	return append([]string(nil), defaultCommands...)
}
