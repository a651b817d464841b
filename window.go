// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tasr

import "github.com/cockroachdb/tasr/internal/invariants"

// window is the staging buffer between the byte source and the decoder. New
// chunks are appended at the tail; the decoder consumes from the head.
// Consumed bytes are discarded lazily, when an append would otherwise need to
// grow the buffer or when everything buffered has been consumed.
type window struct {
	// buf[off:] holds the bytes that have been appended but not consumed.
	buf []byte
	off int
	// consumed is the total number of bytes consumed since the start of the
	// stream.
	consumed int64
}

func makeWindow(initialSize int) window {
	return window{buf: make([]byte, 0, initialSize)}
}

// append adds a chunk to the tail of the window. The window does not retain
// chunk.
func (w *window) append(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	if w.off > 0 && (w.off == len(w.buf) || len(w.buf)+len(chunk) > cap(w.buf)) {
		w.compact()
	}
	w.buf = append(w.buf, chunk...)
}

// available returns the number of buffered bytes that have not been consumed.
func (w *window) available() int {
	return invariants.SafeSub(len(w.buf), w.off)
}

// bytes returns the unconsumed bytes. The slice is only valid until the next
// call to append.
func (w *window) bytes() []byte {
	return w.buf[w.off:]
}

// advance discards the first n unconsumed bytes.
func (w *window) advance(n int) {
	invariants.CheckBounds(n, w.available()+1)
	w.off += n
	w.consumed += int64(n)
	if w.off == len(w.buf) {
		w.buf = w.buf[:0]
		w.off = 0
	}
}

// compact moves the unconsumed bytes to the front of the buffer.
func (w *window) compact() {
	n := copy(w.buf, w.buf[w.off:])
	w.buf = w.buf[:n]
	w.off = 0
}

// offset returns the absolute stream offset of the first unconsumed byte.
func (w *window) offset() int64 {
	return w.consumed
}
