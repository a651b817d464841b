// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tasr

import (
	"io"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func TestErrorKind(t *testing.T) {
	for i, a := range errorKinds {
		for j, b := range errorKinds {
			require.Equal(t, i == j, errors.Is(a.err, b.err), "%s vs %s", a.name, b.name)
		}

		wrapped := errors.Wrapf(a.err, "field %d", 3)
		require.Equal(t, a.name, ErrorKind(a.err))
		require.Equal(t, a.name, ErrorKind(wrapped))
		require.Equal(t, a.name, ErrorKind(&DecodeError{State: StateParsingRows, Offset: 40, Err: wrapped}))
	}
	require.False(t, errors.Is(ErrInvalidUTF8, ErrBadMagic))
	require.Equal(t, "other", ErrorKind(io.ErrUnexpectedEOF))
	require.Equal(t, "other", ErrorKind(nil))
}

func TestIsCorruption(t *testing.T) {
	for _, err := range []error{
		ErrBadMagic,
		ErrBadVersion,
		ErrUnknownFieldType,
		ErrBadHeaderName,
		ErrSchemaOverrun,
		ErrInvalidUTF8,
		ErrInlineLengthOverflow,
		ErrBlobBounds,
	} {
		require.True(t, IsCorruption(err), "%v", err)
		require.True(t, IsCorruption(&DecodeError{Err: errors.Wrap(err, "x")}), "%v", err)
		require.False(t, IsIncomplete(err), "%v", err)
	}
	for _, err := range []error{
		ErrRowTooLarge,
		ErrFieldCountMismatch,
		ErrIncompleteStream,
		ErrSinkClosed,
		io.ErrUnexpectedEOF,
	} {
		require.False(t, IsCorruption(err), "%v", err)
	}
	require.True(t, IsIncomplete(&DecodeError{Err: ErrIncompleteStream}))
}
