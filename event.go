// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tasr

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
)

// SchemaInfo contains the info for a schema parsed event.
type SchemaInfo struct {
	Schema *Schema
	// Offset is the stream offset at which the first row begins.
	Offset int64
}

func (i SchemaInfo) String() string {
	return redact.StringWithoutMarkers(i)
}

// SafeFormat implements redact.SafeFormatter.
func (i SchemaInfo) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("schema v%s parsed: %d headers, row width %d, rows at offset %d",
		i.Schema.Version, redact.Safe(len(i.Schema.Headers)),
		redact.Safe(i.Schema.RowWidth), redact.Safe(i.Offset))
}

// DecodeFailureInfo contains the info for a decode failed event.
type DecodeFailureInfo struct {
	State  State
	Offset int64
	Err    error
}

func (i DecodeFailureInfo) String() string {
	return redact.StringWithoutMarkers(i)
}

// SafeFormat implements redact.SafeFormatter.
func (i DecodeFailureInfo) SafeFormat(w redact.SafePrinter, _ rune) {
	kind := "decode failed"
	if errors.Is(i.Err, ErrIncompleteStream) {
		kind = "stream truncated"
	}
	w.Printf("%s in state %s at offset %d: %v",
		redact.SafeString(kind), i.State, redact.Safe(i.Offset), i.Err)
}

// FinishInfo contains the info for a finished event.
type FinishInfo struct {
	Schema *Schema
	Stats  Stats
}

func (i FinishInfo) String() string {
	return redact.StringWithoutMarkers(i)
}

// SafeFormat implements redact.SafeFormatter.
func (i FinishInfo) SafeFormat(w redact.SafePrinter, _ rune) {
	if i.Stats.Stopped {
		w.Printf("decoding stopped by sink: %s", i.Stats)
		return
	}
	w.Printf("decoding finished: %s", i.Stats)
}

// EventListener contains a set of functions that will be invoked when various
// decoder events occur.
//
// The functions are called synchronously on the goroutine driving the
// decoder and should not block.
type EventListener struct {
	// SchemaParsed is invoked once the header section has been decoded.
	SchemaParsed func(SchemaInfo)

	// DecodeFailed is invoked when the decoder fails, including when the
	// stream ends prematurely.
	DecodeFailed func(DecodeFailureInfo)

	// Finished is invoked when the stream ends cleanly on a row boundary, or
	// when the sink stops the decoder.
	Finished func(FinishInfo)
}

// EnsureDefaults ensures that background error events are logged to the
// specified logger if a handler for those events hasn't been otherwise
// specified. Ensure all handlers are non-nil so that we don't have to check
// for nil-ness before invoking.
func (l *EventListener) EnsureDefaults(logger Logger) {
	if l.DecodeFailed == nil {
		if logger != nil {
			l.DecodeFailed = func(info DecodeFailureInfo) {
				logger.Errorf("%s", info)
			}
		} else {
			l.DecodeFailed = func(info DecodeFailureInfo) {}
		}
	}
	if l.SchemaParsed == nil {
		l.SchemaParsed = func(info SchemaInfo) {}
	}
	if l.Finished == nil {
		l.Finished = func(info FinishInfo) {}
	}
}

// MakeLoggingEventListener creates an EventListener that logs all events to
// the specified logger.
func MakeLoggingEventListener(logger Logger) EventListener {
	if logger == nil {
		logger = DefaultLogger
	}

	return EventListener{
		SchemaParsed: func(info SchemaInfo) {
			logger.Infof("%s", info)
		},
		DecodeFailed: func(info DecodeFailureInfo) {
			logger.Errorf("%s", info)
		},
		Finished: func(info FinishInfo) {
			logger.Infof("%s", info)
		},
	}
}

// TeeEventListener wraps two EventListeners, forwarding all events to both.
func TeeEventListener(a, b EventListener) EventListener {
	a.EnsureDefaults(nil)
	b.EnsureDefaults(nil)
	return EventListener{
		SchemaParsed: func(info SchemaInfo) {
			a.SchemaParsed(info)
			b.SchemaParsed(info)
		},
		DecodeFailed: func(info DecodeFailureInfo) {
			a.DecodeFailed(info)
			b.DecodeFailed(info)
		},
		Finished: func(info FinishInfo) {
			a.Finished(info)
			b.Finished(info)
		},
	}
}
