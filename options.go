// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tasr

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/tasr/internal/base"
)

// Logger defines an interface for writing log messages.
type Logger = base.Logger

// DefaultLogger logs to the Go stdlib logs.
var DefaultLogger Logger = base.DefaultLogger{}

const (
	defaultReadBufferSize    = 32 << 10 // 32 KB
	defaultQueueCapacity     = 64
	defaultMaxRowSize        = 64 << 20 // 64 MB
	defaultInitialWindowSize = 4 << 10  // 4 KB
)

// Options holds the optional parameters for decoding. The zero value, or a nil
// *Options, selects the defaults.
type Options struct {
	// ReadBufferSize is the number of bytes Decode and Run read from the
	// source at a time.
	//
	// The default value is 32 KB.
	ReadBufferSize int

	// QueueCapacity is the number of rows Run buffers between the decoding
	// goroutine and the consumer.
	//
	// The default value is 64.
	QueueCapacity int

	// MaxRowSize bounds both the width of a row's fixed region and the size of
	// each blob region. A stream declaring a larger row is rejected with
	// ErrRowTooLarge instead of being buffered.
	//
	// The default value is 64 MB.
	MaxRowSize int

	// InitialWindowSize is the initial capacity of the decoder's byte window.
	// The window grows as needed to hold the largest row.
	//
	// The default value is 4 KB.
	InitialWindowSize int

	// Logger used to write log messages.
	//
	// The default logger uses the Go standard library log package.
	Logger Logger

	// EventListener provides hooks for listening to decoder events.
	EventListener *EventListener

	// Metrics, if set, is updated as the decoder consumes bytes and emits rows.
	Metrics *Metrics
}

// EnsureDefaults ensures that the default values for all options are set if a
// valid value was not already specified.
func (o *Options) EnsureDefaults() {
	if o.ReadBufferSize <= 0 {
		o.ReadBufferSize = defaultReadBufferSize
	}
	if o.QueueCapacity <= 0 {
		o.QueueCapacity = defaultQueueCapacity
	}
	if o.MaxRowSize <= 0 {
		o.MaxRowSize = defaultMaxRowSize
	}
	if o.InitialWindowSize <= 0 {
		o.InitialWindowSize = defaultInitialWindowSize
	}
	if o.Logger == nil {
		o.Logger = DefaultLogger
	}
	if o.EventListener == nil {
		o.EventListener = &EventListener{}
	}
	o.EventListener.EnsureDefaults(o.Logger)
}

// Clone creates a shallow-copy of the supplied options.
func (o *Options) Clone() *Options {
	if o == nil {
		return &Options{}
	}
	n := *o
	if o.EventListener != nil {
		l := *o.EventListener
		n.EventListener = &l
	}
	return &n
}

func (o *Options) String() string {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "[Version]\n")
	fmt.Fprintf(&buf, "  tasr_version=0.1\n")
	fmt.Fprintf(&buf, "\n")
	fmt.Fprintf(&buf, "[Options]\n")
	fmt.Fprintf(&buf, "  initial_window_size=%d\n", o.InitialWindowSize)
	fmt.Fprintf(&buf, "  max_row_size=%d\n", o.MaxRowSize)
	fmt.Fprintf(&buf, "  queue_capacity=%d\n", o.QueueCapacity)
	fmt.Fprintf(&buf, "  read_buffer_size=%d\n", o.ReadBufferSize)
	return buf.String()
}

type parseOptionsFuncs struct {
	visitNewSection func(section string) error
	visitKeyValue   func(section, key, value string) error
}

// parseOptions takes options serialized by Options.String() and parses them
// into keys and values. It calls fns.visitNewSection for the beginning of each
// new section and fns.visitKeyValue for each key-value pair.
func parseOptions(s string, fns parseOptionsFuncs) error {
	var section string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if len(line) == 0 || line[0] == ';' || line[0] == '#' {
			// Skip blank lines and comments.
			continue
		}
		n := len(line)
		if line[0] == '[' && line[n-1] == ']' {
			section = line[1 : n-1]
			if fns.visitNewSection != nil {
				if err := fns.visitNewSection(section); err != nil {
					return err
				}
			}
			continue
		}

		pos := strings.Index(line, "=")
		if pos < 0 {
			const maxLen = 50
			if len(line) > maxLen {
				line = line[:maxLen-3] + "..."
			}
			return base.CorruptionErrorf("invalid key=value syntax: %q", errors.Safe(line))
		}

		key := strings.TrimSpace(line[:pos])
		value := strings.TrimSpace(line[pos+1:])
		if fns.visitKeyValue != nil {
			if err := fns.visitKeyValue(section, key, value); err != nil {
				return err
			}
		}
	}
	return nil
}

// Parse parses the options from the specified string. Keys that are absent
// leave the corresponding field unchanged. Unknown sections or keys are
// rejected.
func (o *Options) Parse(s string) error {
	return parseOptions(s, parseOptionsFuncs{
		visitNewSection: func(section string) error {
			switch section {
			case "Version", "Options":
				return nil
			default:
				return errors.Errorf("tasr: unknown section: %q", errors.Safe(section))
			}
		},
		visitKeyValue: func(section, key, value string) error {
			switch section {
			case "Version":
				switch key {
				case "tasr_version":
					return nil
				}
			case "Options":
				var err error
				switch key {
				case "initial_window_size":
					o.InitialWindowSize, err = strconv.Atoi(value)
				case "max_row_size":
					o.MaxRowSize, err = strconv.Atoi(value)
				case "queue_capacity":
					o.QueueCapacity, err = strconv.Atoi(value)
				case "read_buffer_size":
					o.ReadBufferSize, err = strconv.Atoi(value)
				default:
					return errors.Errorf("tasr: unknown option: %s.%s",
						errors.Safe(section), errors.Safe(key))
				}
				if err != nil {
					return errors.Wrapf(err, "tasr: parsing %s.%s", errors.Safe(section), errors.Safe(key))
				}
				return nil
			}
			return errors.Errorf("tasr: unknown option: %s.%s",
				errors.Safe(section), errors.Safe(key))
		},
	})
}
