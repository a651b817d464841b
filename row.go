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

const (
	// inlineFlag is set on the first byte of a VariableString slot that
	// carries its payload inline.
	inlineFlag = 0x80
	// inlineLenMask extracts the inline payload length from the first byte.
	inlineLenMask = 0x7f
	// maxInlineLen is the largest payload that fits in a slot after its
	// length byte.
	maxInlineLen = varStringSlotSize - 1
)

// DecodeRow decodes the fixed region of a single row. data must hold at least
// schema.RowWidth bytes; bytes beyond RowWidth are ignored. VariableString
// fields using the reference encoding are returned unresolved; see
// ResolveBlobs.
//
// The returned row does not retain data.
func DecodeRow(schema *Schema, data []byte) (Row, error) {
	if len(data) < schema.RowWidth {
		return nil, errors.AssertionFailedf("tasr: row requires %d bytes, have %d", schema.RowWidth, len(data))
	}
	data = data[:schema.RowWidth]
	row := make(Row, 0, len(schema.Headers))
	for i := range schema.Headers {
		h := &schema.Headers[i]
		w := h.Type.EncodedWidth()
		if w > len(data) {
			break
		}
		v, err := decodeField(h.Type, data[:w])
		if err != nil {
			return nil, errors.Wrapf(err, "field %d (%q)", redact.Safe(i), h.Name)
		}
		row = append(row, v)
		data = data[w:]
	}
	if len(row) != len(schema.Headers) || len(data) != 0 {
		return nil, errors.Mark(errors.AssertionFailedf(
			"tasr: decoded %d fields for %d headers (%d bytes left over)",
			len(row), len(schema.Headers), len(data)), ErrFieldCountMismatch)
	}
	return row, nil
}

// decodeField decodes a single field from a slice of exactly its encoded
// width.
func decodeField(t FieldType, b []byte) (FieldValue, error) {
	switch t.Kind {
	case FixedString:
		if !utf8.Valid(b) {
			return FieldValue{}, errors.Wrapf(ErrInvalidUTF8, "fixed string %x", b)
		}
		return FixedStringValue(string(bytes.TrimRight(b, "\x00"))), nil
	case VariableString:
		return decodeVarString(b)
	case UnsignedInt:
		v, err := decodeUint(b)
		if err != nil {
			return FieldValue{}, err
		}
		return UintValue(uint8(len(b)), v), nil
	case SignedInt:
		v, err := decodeUint(b)
		if err != nil {
			return FieldValue{}, err
		}
		// Sign-extend from the encoded width.
		shift := 64 - 8*uint(len(b))
		return IntValue(uint8(len(b)), int64(v<<shift)>>shift), nil
	default:
		return FieldValue{}, errors.AssertionFailedf("tasr: unknown field kind %d", t.Kind)
	}
}

func decodeUint(b []byte) (uint64, error) {
	switch len(b) {
	case 1:
		return uint64(b[0]), nil
	case 2:
		return uint64(binary.LittleEndian.Uint16(b)), nil
	case 4:
		return uint64(binary.LittleEndian.Uint32(b)), nil
	case 8:
		return binary.LittleEndian.Uint64(b), nil
	default:
		// Integer widths are validated when the header is parsed.
		return 0, errors.AssertionFailedf("tasr: unsupported integer width %d", len(b))
	}
}

// decodeVarString decodes a 16-byte VariableString slot. If the most
// significant bit of the first byte is set, the low 7 bits hold the length of
// an inline payload that follows. Otherwise the whole slot is a pair of
// little-endian uint64s giving the offset and length of the payload within
// the row's blob region.
func decodeVarString(b []byte) (FieldValue, error) {
	if len(b) != varStringSlotSize {
		return FieldValue{}, errors.AssertionFailedf("tasr: variable string slot of %d bytes", len(b))
	}
	if b[0]&inlineFlag == 0 {
		return BlobRefValue(binary.LittleEndian.Uint64(b[0:8]), binary.LittleEndian.Uint64(b[8:16])), nil
	}
	n := int(b[0] & inlineLenMask)
	if n > maxInlineLen {
		return FieldValue{}, errors.Wrapf(ErrInlineLengthOverflow,
			"inline length %d exceeds %d", redact.Safe(n), redact.Safe(maxInlineLen))
	}
	payload := b[1 : 1+n]
	if !utf8.Valid(payload) {
		return FieldValue{}, errors.Wrapf(ErrInvalidUTF8, "inline string %x", payload)
	}
	return VarStringValue(string(payload)), nil
}
