// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package binfmt

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
)

// HexDump returns a string representation of the data in a hex dump format.
// The width is the number of bytes per line.
func HexDump(data []byte, width int, includeOffsets bool) string {
	var buf bytes.Buffer
	FHexDump(&buf, data, width, includeOffsets)
	return buf.String()
}

// FHexDump writes a hex dump of the data to w, starting each line with the
// offset of its first byte when includeOffsets is set.
func FHexDump(w io.Writer, data []byte, width int, includeOffsets bool) {
	if width <= 0 {
		width = 16
	}
	offsetFormatWidth := max(2, len(strconv.FormatInt(int64(max(len(data)-1, 0)), 16)))
	offsetFormatStr := "%0" + strconv.Itoa(offsetFormatWidth) + "x: "
	for i := 0; i < len(data); i += width {
		if includeOffsets {
			fmt.Fprintf(w, offsetFormatStr, i)
		}
		line := data[i:min(i+width, len(data))]
		for j := 0; j < width; j++ {
			if j%4 == 0 {
				fmt.Fprint(w, " ")
			}
			if j < len(line) {
				fmt.Fprintf(w, "%02x", line[j])
			} else {
				fmt.Fprint(w, "  ")
			}
		}
		fmt.Fprint(w, " | ")
		for j := range line {
			if j%4 == 0 {
				fmt.Fprint(w, " ")
			}
			fmt.Fprint(w, asciiChars(line[j:j+1]))
		}
		fmt.Fprintln(w)
	}
}
