// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tasr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/redact"
	"github.com/cockroachdb/swiss"
)

// Version is the format version recorded in the preamble. It is carried for
// diagnostics only.
type Version struct {
	Major uint32
	Minor uint32
}

// String implements fmt.Stringer.
func (v Version) String() string {
	return redact.StringWithoutMarkers(v)
}

// SafeFormat implements redact.SafeFormatter.
func (v Version) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("%02d.%02d", redact.SafeUint(v.Major), redact.SafeUint(v.Minor))
}

// FieldKind enumerates the closed set of field types a header may declare.
type FieldKind uint8

const (
	// FixedString is a byte string padded with NULs to a fixed width.
	FixedString FieldKind = iota + 1
	// VariableString is a 16-byte slot holding either an inline payload or a
	// reference into the row's blob region.
	VariableString
	// UnsignedInt is a little-endian unsigned integer of width 1, 2, 4 or 8.
	UnsignedInt
	// SignedInt is a little-endian two's-complement integer of width 1, 2, 4
	// or 8.
	SignedInt
)

// varStringSlotSize is the number of bytes a VariableString field occupies
// within a row's fixed region.
const varStringSlotSize = 16

var fieldKindNames = [...]string{
	FixedString:    "FixedString",
	VariableString: "VariableString",
	UnsignedInt:    "UnsignedInt",
	SignedInt:      "SignedInt",
}

// String implements fmt.Stringer.
func (k FieldKind) String() string {
	if int(k) < len(fieldKindNames) && fieldKindNames[k] != "" {
		return fieldKindNames[k]
	}
	return fmt.Sprintf("FieldKind(%d)", uint8(k))
}

// SafeValue implements redact.SafeValue.
func (k FieldKind) SafeValue() {}

// FieldType is the declared type of a column. Width is the byte width for
// FixedString and integer kinds and is zero for VariableString.
type FieldType struct {
	Kind  FieldKind
	Width uint32
}

// EncodedWidth returns the number of bytes the field occupies in a row's fixed
// region.
func (t FieldType) EncodedWidth() int {
	switch t.Kind {
	case VariableString:
		return varStringSlotSize
	case FixedString, UnsignedInt, SignedInt:
		return int(t.Width)
	default:
		panic(fmt.Sprintf("tasr: unknown field kind %d", t.Kind))
	}
}

// String implements fmt.Stringer.
func (t FieldType) String() string {
	return redact.StringWithoutMarkers(t)
}

// SafeFormat implements redact.SafeFormatter.
func (t FieldType) SafeFormat(w redact.SafePrinter, _ rune) {
	switch t.Kind {
	case VariableString:
		w.Print(t.Kind)
	default:
		w.Printf("%s(%d)", t.Kind, redact.SafeUint(t.Width))
	}
}

// Header describes a single column of the schema.
type Header struct {
	Name string
	Type FieldType
}

// String implements fmt.Stringer.
func (h Header) String() string {
	return fmt.Sprintf("%s %s", h.Name, h.Type)
}

// BlobRef locates a VariableString payload within a row's blob region.
type BlobRef struct {
	Offset uint64
	Length uint64
}

// FieldValue is a decoded field. Kind selects which of the remaining fields
// are meaningful:
//
//   - FixedString: Str.
//   - VariableString: Str when resolved, Ref when Unresolved is set.
//   - UnsignedInt: Width and Uint.
//   - SignedInt: Width and Int.
type FieldValue struct {
	Kind  FieldKind
	Width uint8
	Str   string
	Uint  uint64
	Int   int64
	// Ref is only meaningful while Unresolved is true.
	Ref        BlobRef
	Unresolved bool
}

// FixedStringValue constructs a FixedString value.
func FixedStringValue(s string) FieldValue {
	return FieldValue{Kind: FixedString, Str: s}
}

// VarStringValue constructs a resolved VariableString value.
func VarStringValue(s string) FieldValue {
	return FieldValue{Kind: VariableString, Str: s}
}

// BlobRefValue constructs an unresolved VariableString value referencing
// [offset, offset+length) of the row's blob region.
func BlobRefValue(offset, length uint64) FieldValue {
	return FieldValue{
		Kind:       VariableString,
		Ref:        BlobRef{Offset: offset, Length: length},
		Unresolved: true,
	}
}

// UintValue constructs an UnsignedInt value of the given byte width.
func UintValue(width uint8, v uint64) FieldValue {
	return FieldValue{Kind: UnsignedInt, Width: width, Uint: v}
}

// IntValue constructs a SignedInt value of the given byte width.
func IntValue(width uint8, v int64) FieldValue {
	return FieldValue{Kind: SignedInt, Width: width, Int: v}
}

// String implements fmt.Stringer.
func (v FieldValue) String() string {
	return redact.StringWithoutMarkers(v)
}

// SafeFormat implements redact.SafeFormatter. String payloads are user data
// and are left unsafe.
func (v FieldValue) SafeFormat(w redact.SafePrinter, _ rune) {
	switch v.Kind {
	case FixedString:
		w.Printf("%q", v.Str)
	case VariableString:
		if v.Unresolved {
			w.Printf("blob[%d,+%d)", redact.SafeUint(v.Ref.Offset), redact.SafeUint(v.Ref.Length))
			return
		}
		w.Printf("%q", v.Str)
	case UnsignedInt:
		w.Printf("u%d:%d", redact.SafeUint(uint64(v.Width)*8), v.Uint)
	case SignedInt:
		w.Printf("i%d:%d", redact.SafeUint(uint64(v.Width)*8), v.Int)
	default:
		w.Printf("<%s>", v.Kind)
	}
}

// Row is a decoded row: one value per header, in header order.
type Row []FieldValue

// unresolved returns the number of VariableString fields still awaiting their
// blob region.
func (r Row) unresolved() int {
	n := 0
	for i := range r {
		if r[i].Unresolved {
			n++
		}
	}
	return n
}

// Schema is the decoded header section. It is immutable once the decoder has
// finished parsing headers.
type Schema struct {
	Version Version
	Headers []Header
	// RowWidth is the size in bytes of each row's fixed region.
	RowWidth int

	// index maps header names to the position of their first occurrence.
	index swiss.Map[string, int]
}

// NewSchema constructs a Schema from an ordered list of headers and computes
// its row width.
func NewSchema(version Version, headers []Header) *Schema {
	s := &Schema{Version: version, Headers: headers}
	s.index.Init(len(headers))
	for i, h := range headers {
		if _, ok := s.index.Get(h.Name); !ok {
			s.index.Put(h.Name, i)
		}
		s.RowWidth += h.Type.EncodedWidth()
	}
	return s
}

// Lookup returns the index of the first header with the given name.
func (s *Schema) Lookup(name string) (int, bool) {
	return s.index.Get(name)
}

// String implements fmt.Stringer.
func (s *Schema) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "v%s:", s.Version)
	for i, h := range s.Headers {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, " %s", h)
	}
	if len(s.Headers) == 0 {
		b.WriteString(" <no headers>")
	}
	fmt.Fprintf(&b, "; row width %d", s.RowWidth)
	return b.String()
}

// FormatRow renders a row as space separated name=value pairs.
func (s *Schema) FormatRow(r Row) string {
	var b strings.Builder
	for i, v := range r {
		if i > 0 {
			b.WriteByte(' ')
		}
		name := "?" + strconv.Itoa(i)
		if i < len(s.Headers) {
			name = s.Headers[i].Name
		}
		fmt.Fprintf(&b, "%s=%s", name, v)
	}
	return b.String()
}
