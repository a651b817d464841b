// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tasr

import (
	"bytes"
	"encoding/binary"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
)

// These constants are part of the wire format and should not be changed.
const (
	magicLen       = 4
	versionLen     = 4
	headerCountLen = 4
	// PreambleLen is the length of the magic, version and header count that
	// begin every stream.
	PreambleLen = magicLen + versionLen + headerCountLen
	// HeaderRecordLen is the length of a single header record.
	HeaderRecordLen = 28

	headerNameLen     = 16
	headerReservedLen = 4
	headerTagOffset   = headerNameLen + headerReservedLen
	headerParamOffset = headerTagOffset + 4
)

var magic = []byte("TASR")

// Type tags within a header record.
var (
	tagString   = []byte("STRN")
	tagUnsigned = []byte("UINT")
	tagSigned   = []byte("IINT")
)

// ParseMagic verifies that b begins with the TASR magic. b must hold at least
// 4 bytes.
func ParseMagic(b []byte) error {
	if len(b) < magicLen {
		return errors.AssertionFailedf("tasr: magic requires %d bytes, have %d", magicLen, len(b))
	}
	if !bytes.Equal(b[:magicLen], magic) {
		return errors.Wrapf(ErrBadMagic, "found %q", b[:magicLen])
	}
	return nil
}

// ParseVersion decodes the two 2-digit ASCII version components at the start
// of b. b must hold at least 4 bytes.
func ParseVersion(b []byte) (Version, error) {
	if len(b) < versionLen {
		return Version{}, errors.AssertionFailedf("tasr: version requires %d bytes, have %d", versionLen, len(b))
	}
	major, ok := parseTwoDigits(b[0:2])
	if !ok {
		return Version{}, errors.Wrapf(ErrBadVersion, "major version %q", b[0:2])
	}
	minor, ok := parseTwoDigits(b[2:4])
	if !ok {
		return Version{}, errors.Wrapf(ErrBadVersion, "minor version %q", b[2:4])
	}
	return Version{Major: major, Minor: minor}, nil
}

func parseTwoDigits(b []byte) (uint32, bool) {
	var v uint32
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, false
		}
		v = v*10 + uint32(c-'0')
	}
	return v, true
}

// ParseHeaderCount decodes the little-endian header count at the start of b.
func ParseHeaderCount(b []byte) (uint32, error) {
	if len(b) < headerCountLen {
		return 0, errors.AssertionFailedf("tasr: header count requires %d bytes, have %d", headerCountLen, len(b))
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ParsePreamble decodes the magic, version and header count as a single
// unit. b must hold at least PreambleLen bytes.
func ParsePreamble(b []byte) (Version, uint32, error) {
	if err := ParseMagic(b); err != nil {
		return Version{}, 0, err
	}
	v, err := ParseVersion(b[magicLen:])
	if err != nil {
		return Version{}, 0, err
	}
	n, err := ParseHeaderCount(b[magicLen+versionLen:])
	if err != nil {
		return Version{}, 0, err
	}
	return v, n, nil
}

// ParseHeader decodes a single 28-byte header record at the start of b.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderRecordLen {
		return Header{}, errors.AssertionFailedf("tasr: header requires %d bytes, have %d", HeaderRecordLen, len(b))
	}
	rawName := b[:headerNameLen]
	if !utf8.Valid(rawName) {
		return Header{}, errors.Wrapf(ErrBadHeaderName, "name bytes %x", rawName)
	}
	h := Header{Name: string(bytes.TrimRight(rawName, "\x00"))}

	tag := b[headerTagOffset:headerParamOffset]
	param := binary.LittleEndian.Uint32(b[headerParamOffset:HeaderRecordLen])
	switch {
	case bytes.Equal(tag, tagString):
		if param == 0 {
			h.Type = FieldType{Kind: VariableString}
		} else {
			h.Type = FieldType{Kind: FixedString, Width: param}
		}
	case bytes.Equal(tag, tagUnsigned):
		h.Type = FieldType{Kind: UnsignedInt, Width: param}
	case bytes.Equal(tag, tagSigned):
		h.Type = FieldType{Kind: SignedInt, Width: param}
	default:
		return Header{}, errors.Wrapf(ErrUnknownFieldType, "tag %q for header %q", tag, h.Name)
	}
	if h.Type.Kind == UnsignedInt || h.Type.Kind == SignedInt {
		switch param {
		case 1, 2, 4, 8:
		default:
			return Header{}, errors.Wrapf(ErrUnknownFieldType,
				"unsupported %s width %d for header %q", h.Type.Kind, redact.SafeUint(param), h.Name)
		}
	}
	return h, nil
}

// schemaBuilder accumulates header records until the declared count is
// reached.
type schemaBuilder struct {
	version  Version
	declared uint32
	headers  []Header
	// maxRowSize bounds the row width so that a corrupt header cannot make
	// the decoder wait for (and buffer) an arbitrarily large row.
	maxRowSize int
	rowWidth   int
}

func makeSchemaBuilder(version Version, declared uint32, maxRowSize int) schemaBuilder {
	return schemaBuilder{
		version:    version,
		declared:   declared,
		headers:    make([]Header, 0, min(declared, 1024)),
		maxRowSize: maxRowSize,
	}
}

// done returns true once the declared number of headers has been added.
func (b *schemaBuilder) done() bool {
	return uint64(len(b.headers)) == uint64(b.declared)
}

// add appends a header. Adding a header beyond the declared count is a
// fatal ErrSchemaOverrun.
func (b *schemaBuilder) add(h Header) error {
	if uint64(len(b.headers)) >= uint64(b.declared) {
		return errors.Wrapf(ErrSchemaOverrun, "expected %d headers, found %d",
			redact.SafeUint(b.declared), redact.SafeUint(uint64(len(b.headers))+1))
	}
	w := h.Type.EncodedWidth()
	if w > b.maxRowSize-b.rowWidth {
		return errors.Wrapf(ErrRowTooLarge,
			"header %q widens rows beyond MaxRowSize %d", h.Name, redact.Safe(b.maxRowSize))
	}
	b.rowWidth += w
	b.headers = append(b.headers, h)
	return nil
}

// finish returns the completed schema.
func (b *schemaBuilder) finish() *Schema {
	if !b.done() {
		panic(errors.AssertionFailedf("tasr: schema finished with %d of %d headers",
			len(b.headers), b.declared))
	}
	return NewSchema(b.version, b.headers)
}
