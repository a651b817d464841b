// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package binfmt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHexDump(t *testing.T) {
	got := HexDump([]byte("hello world!"), 8, true)
	want := "00:  68656c6c 6f20776f |  hell o wo\n" +
		"08:  726c6421" + strings.Repeat(" ", 10) + "|  rld!\n"
	require.Equal(t, want, got)

	require.Equal(t, " 0001 |  ..\n", HexDump([]byte{0, 1}, 2, false))
	require.Equal(t, "", HexDump(nil, 16, true))
}

func TestFormatter(t *testing.T) {
	data := []byte("TASR0100\x01\x00\x00\x00\x85")
	f := New(data)
	f.HexTextln(4)
	f.HexBytesln(4, "version %s", data[4:8])
	require.Equal(t, uint64(1), f.Uintln(4, "header count"))
	f.Line(1).Binary(1).Done("inline, length %d", data[12]&0x7f)
	f.Commentln("end")
	require.False(t, f.More())
	require.Equal(t, 0, f.Remaining())

	want := `00-04: x 54415352 # TASR
04-08: x 30313030 # version 0100
08-12: x 01000000 # uint32(1): header count
12-13: 10000101   # inline, length 5
# end
`
	require.Equal(t, want, f.String())
}
