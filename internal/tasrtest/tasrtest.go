// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package tasrtest lays out TASR streams byte by byte for tests. It performs
// no validation beyond what is needed to place bytes, so it can also produce
// malformed streams.
package tasrtest

import (
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"strings"
)

// Tags of the three header types.
const (
	TagString   = "STRN"
	TagUnsigned = "UINT"
	TagSigned   = "IINT"
)

// Builder accumulates the bytes of a stream.
type Builder struct {
	buf []byte
}

// Bytes returns the bytes accumulated so far.
func (b *Builder) Bytes() []byte {
	return b.buf
}

// Len returns the number of bytes accumulated so far.
func (b *Builder) Len() int {
	return len(b.buf)
}

// Raw appends p verbatim.
func (b *Builder) Raw(p ...byte) *Builder {
	b.buf = append(b.buf, p...)
	return b
}

// Preamble appends the magic, a version and a header count.
func (b *Builder) Preamble(major, minor int, headers uint32) *Builder {
	b.buf = append(b.buf, "TASR"...)
	b.buf = fmt.Appendf(b.buf, "%02d%02d", major, minor)
	b.buf = binary.LittleEndian.AppendUint32(b.buf, headers)
	return b
}

// Header appends a header record. name is NUL padded to 16 bytes and must
// not be longer.
func (b *Builder) Header(name, tag string, param uint32) *Builder {
	if len(name) > 16 || len(tag) != 4 {
		panic(fmt.Sprintf("tasrtest: bad header %q %q", name, tag))
	}
	var rec [28]byte
	copy(rec[:16], name)
	copy(rec[20:24], tag)
	binary.LittleEndian.PutUint32(rec[24:], param)
	b.buf = append(b.buf, rec[:]...)
	return b
}

// Uint appends a little-endian unsigned integer of the given width.
func (b *Builder) Uint(width int, v uint64) *Builder {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	b.buf = append(b.buf, tmp[:width]...)
	return b
}

// Int appends a little-endian two's-complement integer of the given width.
func (b *Builder) Int(width int, v int64) *Builder {
	return b.Uint(width, uint64(v))
}

// Fixed appends s NUL padded to width bytes.
func (b *Builder) Fixed(width int, s string) *Builder {
	if len(s) > width {
		panic(fmt.Sprintf("tasrtest: %q does not fit in %d bytes", s, width))
	}
	b.buf = append(b.buf, s...)
	b.buf = append(b.buf, make([]byte, width-len(s))...)
	return b
}

// Inline appends a VariableString slot holding s inline. s must be at most
// 15 bytes.
func (b *Builder) Inline(s string) *Builder {
	if len(s) > 15 {
		panic(fmt.Sprintf("tasrtest: %q does not fit inline", s))
	}
	return b.InlineLen(byte(len(s)), s)
}

// InlineLen appends a VariableString slot with an inline flag, the given
// declared length and payload, padded to 16 bytes. The declared length need
// not match the payload.
func (b *Builder) InlineLen(length byte, payload string) *Builder {
	var slot [16]byte
	slot[0] = 0x80 | length&0x7f
	copy(slot[1:], payload)
	b.buf = append(b.buf, slot[:]...)
	return b
}

// Ref appends a VariableString slot referencing [offset, offset+length) of
// the row's blob region. The first byte of the slot is the low byte of
// offset, so offsets with bit 7 set are read back as inline strings.
func (b *Builder) Ref(offset, length uint64) *Builder {
	b.buf = binary.LittleEndian.AppendUint64(b.buf, offset)
	b.buf = binary.LittleEndian.AppendUint64(b.buf, length)
	return b
}

// Blob appends s verbatim as (part of) a blob region.
func (b *Builder) Blob(s string) *Builder {
	b.buf = append(b.buf, s...)
	return b
}

// Column describes a header of a randomly generated stream.
type Column struct {
	Name  string
	Tag   string
	Param uint32
}

// RandomColumns returns n columns of random types.
func RandomColumns(rng *rand.Rand, n int) []Column {
	cols := make([]Column, n)
	widths := []uint32{1, 2, 4, 8}
	for i := range cols {
		c := &cols[i]
		c.Name = fmt.Sprintf("c%d", i)
		switch rng.IntN(4) {
		case 0:
			c.Tag, c.Param = TagString, 0
		case 1:
			c.Tag, c.Param = TagString, 1+rng.Uint32N(24)
		case 2:
			c.Tag, c.Param = TagUnsigned, widths[rng.IntN(len(widths))]
		default:
			c.Tag, c.Param = TagSigned, widths[rng.IntN(len(widths))]
		}
	}
	return cols
}

// RandomStream returns a well-formed stream with the given columns and nRows
// rows of random values. Variable strings are stored inline or in the blob
// region at random; blob regions may contain padding and references may
// overlap.
func RandomStream(rng *rand.Rand, cols []Column, nRows int) []byte {
	var b Builder
	b.Preamble(rng.IntN(100), rng.IntN(100), uint32(len(cols)))
	for _, c := range cols {
		b.Header(c.Name, c.Tag, c.Param)
	}
	for r := 0; r < nRows; r++ {
		var blob []byte
		for _, c := range cols {
			switch {
			case c.Tag == TagString && c.Param == 0:
				s := randomString(rng, rng.IntN(40))
				if len(s) <= 15 && rng.IntN(2) == 0 {
					b.Inline(s)
					continue
				}
				if len(blob) > 0 && rng.IntN(4) == 0 {
					// Reference a prefix of bytes already placed in the blob region.
					b.Ref(0, uint64(rng.IntN(len(blob)+1)))
					continue
				}
				blob = append(blob, randomString(rng, rng.IntN(3))...)
				for len(blob)&0x80 != 0 {
					blob = append(blob, ' ')
				}
				b.Ref(uint64(len(blob)), uint64(len(s)))
				blob = append(blob, s...)
			case c.Tag == TagString:
				b.Fixed(int(c.Param), randomString(rng, rng.IntN(int(c.Param)+1)))
			default:
				b.Uint(int(c.Param), rng.Uint64())
			}
		}
		b.Blob(string(blob))
	}
	return b.Bytes()
}

const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789 "

func randomString(rng *rand.Rand, n int) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		sb.WriteByte(alphabet[rng.IntN(len(alphabet))])
	}
	return sb.String()
}
