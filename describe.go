// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tasr

import (
	"github.com/cockroachdb/tasr/internal/binfmt"
)

// Describe returns an annotated rendering of the layout of data, which must
// hold a prefix of a TASR stream: the preamble, each header record and the
// fields and blob region of up to maxRows rows (all rows if maxRows <= 0).
// Rendering stops with a comment at the first truncated or malformed
// structure.
func Describe(data []byte, maxRows int) string {
	f := binfmt.New(data)
	describeStream(f, maxRows)
	return f.String()
}

func describeStream(f *binfmt.Formatter, maxRows int) {
	if !describeAvailable(f, PreambleLen, "preamble") {
		return
	}
	version, declared, err := ParsePreamble(f.Peek(PreambleLen))
	f.HexBytesln(magicLen, "magic %q", f.Peek(magicLen))
	f.HexBytesln(versionLen, "version %q", f.Peek(versionLen))
	f.Uintln(headerCountLen, "header count")
	if err != nil {
		f.Commentln("error: %v", err)
		return
	}

	b := makeSchemaBuilder(version, declared, defaultMaxRowSize)
	for i := 0; !b.done(); i++ {
		if !describeAvailable(f, HeaderRecordLen, "header record") {
			return
		}
		h, err := ParseHeader(f.Peek(HeaderRecordLen))
		f.HexBytesln(headerNameLen, "header %d: name %q", i, f.Peek(headerNameLen))
		f.HexBytesln(headerReservedLen, "reserved")
		f.HexBytesln(headerParamOffset-headerTagOffset, "type tag %q", f.Peek(4))
		f.Uintln(HeaderRecordLen-headerParamOffset, "type param")
		if err == nil {
			err = b.add(h)
		}
		if err != nil {
			f.Commentln("error: %v", err)
			return
		}
		f.Commentln("%s", h)
	}
	schema := b.finish()
	f.Commentln("schema %s", schema)

	for r := 0; f.More(); r++ {
		if maxRows > 0 && r == maxRows {
			f.Commentln("%d more bytes", f.Remaining())
			return
		}
		if schema.RowWidth == 0 {
			f.Commentln("error: %d bytes follow a schema with no headers", f.Remaining())
			return
		}
		if !describeRow(f, schema, r) {
			return
		}
	}
}

// describeRow renders a single row, returning false if rendering must stop.
func describeRow(f *binfmt.Formatter, schema *Schema, r int) bool {
	if !describeAvailable(f, uint64(schema.RowWidth), "row") {
		return false
	}
	f.Commentln("row %d", r)
	row := make(Row, 0, len(schema.Headers))
	for i := range schema.Headers {
		h := &schema.Headers[i]
		w := h.Type.EncodedWidth()
		v, err := decodeField(h.Type, f.Peek(w))
		if err != nil {
			f.HexBytesln(w, "%s: error: %v", h.Name, err)
			return false
		}
		if h.Type.Kind == VariableString {
			if v.Unresolved {
				f.Uintln(8, "%s: blob offset", h.Name)
				f.Uintln(8, "%s: blob length", h.Name)
			} else {
				f.Line(1).Binary(1).Done("%s: inline, length %d", h.Name, len(v.Str))
				f.HexBytesln(varStringSlotSize-1, "%s: %s", h.Name, v)
			}
		} else {
			f.HexBytesln(w, "%s: %s", h.Name, v)
		}
		row = append(row, v)
	}

	size, err := BlobRegionSize(row)
	if err != nil {
		f.Commentln("error: %v", err)
		return false
	}
	if !describeAvailable(f, size, "blob region") {
		return false
	}
	if err := ResolveBlobs(row, f.Peek(int(size))); err != nil {
		f.Commentln("error: %v", err)
		return false
	}
	if size == 0 {
		return true
	}
	f.Commentln("row %d blob region: %s", r, schema.FormatRow(row))
	f.HexTextln(int(size))
	return true
}

// describeAvailable adds a comment and returns false if fewer than n bytes
// remain.
func describeAvailable(f *binfmt.Formatter, n uint64, what string) bool {
	if uint64(f.Remaining()) >= n {
		return true
	}
	f.Commentln("truncated %s: %d of %d bytes", what, f.Remaining(), n)
	if f.More() {
		f.HexBytesln(f.Remaining(), "")
	}
	return false
}
