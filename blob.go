// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tasr

import (
	"math"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
)

// BlobRegionSize returns the length of the blob region that trails a row: the
// largest Offset+Length over the row's unresolved VariableString fields, or
// zero if it has none. The maximum is used so the result does not depend on
// the order of the fields.
func BlobRegionSize(row Row) (uint64, error) {
	var size uint64
	for i := range row {
		if !row[i].Unresolved {
			continue
		}
		ref := row[i].Ref
		if ref.Length > math.MaxUint64-ref.Offset {
			return 0, errors.Wrapf(ErrBlobBounds, "field %d: offset %d + length %d overflows",
				redact.Safe(i), redact.SafeUint(ref.Offset), redact.SafeUint(ref.Length))
		}
		size = max(size, ref.Offset+ref.Length)
	}
	return size, nil
}

// ResolveBlobs replaces every unresolved VariableString in row with the UTF-8
// string found at its reference within region. The row is modified in place;
// it is left partially resolved if an error is returned.
func ResolveBlobs(row Row, region []byte) error {
	for i := range row {
		v := &row[i]
		if !v.Unresolved {
			continue
		}
		end := v.Ref.Offset + v.Ref.Length
		if end < v.Ref.Offset || end > uint64(len(region)) {
			return errors.Wrapf(ErrBlobBounds, "field %d: [%d, %d+%d) exceeds blob region of %d bytes",
				redact.Safe(i), redact.SafeUint(v.Ref.Offset), redact.SafeUint(v.Ref.Offset),
				redact.SafeUint(v.Ref.Length), redact.Safe(len(region)))
		}
		b := region[v.Ref.Offset:end]
		if !utf8.Valid(b) {
			return errors.Wrapf(ErrInvalidUTF8, "field %d: blob %x", redact.Safe(i), b)
		}
		*v = VarStringValue(string(b))
	}
	return nil
}
