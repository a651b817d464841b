// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tasr

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// These errors identify the failure kinds the decoder reports. Every decoding
// failure wraps exactly one of them; use errors.Is to classify an error.
// Errors describing malformed input are corruption errors (see IsCorruption).
// ErrRowTooLarge, ErrIncompleteStream, ErrFieldCountMismatch and ErrSinkClosed
// are not.
var (
	// ErrBadMagic is returned when the stream does not begin with "TASR".
	ErrBadMagic = errors.New("tasr: bad magic")
	// ErrBadVersion is returned when either version component is not two
	// ASCII decimal digits.
	ErrBadVersion = errors.New("tasr: bad version")
	// ErrUnknownFieldType is returned for an unrecognized header type tag or
	// an unsupported type parameter.
	ErrUnknownFieldType = errors.New("tasr: unknown field type")
	// ErrBadHeaderName is returned when a header name is not valid UTF-8.
	ErrBadHeaderName = errors.New("tasr: bad header name")
	// ErrSchemaOverrun is returned when more header records are encountered
	// than the preamble declared. The framing of the stream can no longer be
	// trusted and decoding is aborted.
	ErrSchemaOverrun = errors.New("tasr: schema overrun")
	// ErrInvalidUTF8 is returned when a string field or blob is not valid
	// UTF-8.
	ErrInvalidUTF8 = errors.New("tasr: invalid utf-8")
	// ErrInlineLengthOverflow is returned when an inline VariableString
	// declares a length that does not fit within its slot.
	ErrInlineLengthOverflow = errors.New("tasr: inline length overflow")
	// ErrBlobBounds is returned when a blob reference falls outside the blob
	// region available to it.
	ErrBlobBounds = errors.New("tasr: blob out of bounds")
	// ErrRowTooLarge is returned when a schema's rows, or a row's blob region,
	// would exceed Options.MaxRowSize. The stream may be well formed.
	ErrRowTooLarge = errors.New("tasr: row exceeds maximum size")
	// ErrFieldCountMismatch is returned if a decoded row does not contain
	// exactly one value per header. It indicates a bug, not bad input.
	ErrFieldCountMismatch = errors.New("tasr: field count mismatch")
	// ErrIncompleteStream is returned when the stream ends while the decoder
	// still requires more bytes. It indicates truncation, not corruption.
	ErrIncompleteStream = errors.New("tasr: incomplete stream")
	// ErrSinkClosed is returned by a Sink to request that decoding stop. It is
	// not a decoding error.
	ErrSinkClosed = errors.New("tasr: sink closed")
)

// corruptionErrors are the sentinels reporting malformed input.
var corruptionErrors = []error{
	ErrBadMagic,
	ErrBadVersion,
	ErrUnknownFieldType,
	ErrBadHeaderName,
	ErrSchemaOverrun,
	ErrInvalidUTF8,
	ErrInlineLengthOverflow,
	ErrBlobBounds,
}

// IsCorruption returns true if err reports malformed input.
func IsCorruption(err error) bool {
	return errors.IsAny(err, corruptionErrors...)
}

// IsIncomplete returns true if err reports a stream that ended prematurely.
func IsIncomplete(err error) bool {
	return errors.Is(err, ErrIncompleteStream)
}

// errorKinds lists the sentinels in the order ErrorKind checks them.
var errorKinds = []struct {
	err  error
	name string
}{
	{ErrBadMagic, "bad_magic"},
	{ErrBadVersion, "bad_version"},
	{ErrUnknownFieldType, "unknown_field_type"},
	{ErrBadHeaderName, "bad_header_name"},
	{ErrSchemaOverrun, "schema_overrun"},
	{ErrInvalidUTF8, "invalid_utf8"},
	{ErrInlineLengthOverflow, "inline_length_overflow"},
	{ErrBlobBounds, "blob_bounds"},
	{ErrRowTooLarge, "row_too_large"},
	{ErrFieldCountMismatch, "field_count_mismatch"},
	{ErrIncompleteStream, "incomplete_stream"},
	{ErrSinkClosed, "sink_closed"},
}

// ErrorKind returns a short, stable name for the sentinel wrapped by err, or
// "other" for errors that did not originate in the decoder (e.g. I/O errors).
func ErrorKind(err error) string {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "other"
}

// DecodeError wraps a decoding failure with the state the decoder was in and
// the absolute stream offset of the first byte it could not process.
type DecodeError struct {
	State  State
	Offset int64
	Err    error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s (state %s, offset %d)", e.Err, e.State, e.Offset)
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// StateOf returns the decoder state in which err originated, if err was
// produced by a Decoder.
func StateOf(err error) (State, bool) {
	var de *DecodeError
	if errors.As(err, &de) {
		return de.State, true
	}
	return 0, false
}
