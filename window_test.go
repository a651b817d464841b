// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tasr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWindow(t *testing.T) {
	w := makeWindow(4)
	require.Equal(t, 0, w.available())

	w.append([]byte("abc"))
	require.Equal(t, 3, w.available())
	require.Equal(t, "abc", string(w.bytes()))

	w.advance(2)
	require.Equal(t, "c", string(w.bytes()))
	require.Equal(t, int64(2), w.offset())

	// The append does not fit in the remaining capacity, so consumed bytes are
	// discarded first.
	w.append([]byte("de"))
	require.Equal(t, "cde", string(w.bytes()))
	require.Equal(t, 0, w.off)
	require.Equal(t, 4, cap(w.buf))

	// Consuming everything resets the buffer.
	w.advance(3)
	require.Equal(t, 0, w.available())
	require.Equal(t, 0, len(w.buf))
	require.Equal(t, int64(5), w.offset())

	// The window grows to hold a large chunk.
	w.append([]byte("0123456789"))
	require.Equal(t, "0123456789", string(w.bytes()))
	w.advance(0)
	require.Equal(t, int64(5), w.offset())

	// Appending does not retain the caller's slice.
	chunk := []byte("xy")
	w.append(chunk)
	chunk[0] = '!'
	require.Equal(t, "0123456789xy", string(w.bytes()))
	w.append(nil)
	require.Equal(t, 12, w.available())
}
