// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tasr

import (
	"fmt"
	"io"

	"github.com/cockroachdb/crlib/crtime"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
	"github.com/cockroachdb/tasr/internal/invariants"
)

// State is the position of a Decoder within the stream.
type State uint8

const (
	// StateStart is the initial state: the preamble has not been parsed.
	StateStart State = iota
	// StateParsingHeaders parses header records until the declared count has
	// been reached.
	StateParsingHeaders
	// StateParsingRows decodes the fixed region of the next row.
	StateParsingRows
	// StateResolvingBlobs waits for the blob region of the pending row.
	StateResolvingBlobs
	// StateFinished is reached when the stream ends on a row boundary, or when
	// the sink asks the decoder to stop.
	StateFinished
	// StateFailed is reached on the first error. It is absorbing.
	StateFailed
)

var stateNames = [...]string{
	StateStart:          "Start",
	StateParsingHeaders: "ParsingHeaders",
	StateParsingRows:    "ParsingRows",
	StateResolvingBlobs: "ResolvingBlobs",
	StateFinished:       "Finished",
	StateFailed:         "Failed",
}

// String implements fmt.Stringer.
func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// SafeValue implements redact.SafeValue.
func (s State) SafeValue() {}

// progress is the result of a single step of the state machine.
type progress struct {
	// consumed is the number of bytes the step consumed from the front of the
	// window.
	consumed int
	// required is the number of bytes the window must hold before the next
	// step can make progress. It is only set when consumed is zero.
	required int
	// row is set when the step completed a row.
	row Row
	// blobBytes is the size of the blob region consumed for row.
	blobBytes int
	// schemaDone is set by the step that completed the schema.
	schemaDone bool
}

// pendingRow is a row whose fixed region has been decoded and whose blob
// region has not yet been consumed.
type pendingRow struct {
	row     Row
	blobLen int
}

// machine holds the decoding state that survives between steps. It does not
// own the window: step is handed the unconsumed bytes and reports how many it
// consumed.
type machine struct {
	state      State
	maxRowSize int
	builder    schemaBuilder
	schema     *Schema
	pending    *pendingRow
}

// step attempts a single transition given the unconsumed bytes b. It either
// consumes a prefix of b, or consumes nothing and reports how many bytes b
// must hold before it is worth calling again. A returned error is fatal.
func (m *machine) step(b []byte) (progress, error) {
	switch m.state {
	case StateStart:
		if len(b) < PreambleLen {
			return progress{required: PreambleLen}, nil
		}
		version, declared, err := ParsePreamble(b)
		if err != nil {
			return progress{}, err
		}
		m.builder = makeSchemaBuilder(version, declared, m.maxRowSize)
		m.state = StateParsingHeaders
		p := progress{consumed: PreambleLen}
		if m.builder.done() {
			m.finishSchema()
			p.schemaDone = true
		}
		return p, nil

	case StateParsingHeaders:
		if len(b) < HeaderRecordLen {
			return progress{required: HeaderRecordLen}, nil
		}
		h, err := ParseHeader(b)
		if err != nil {
			return progress{}, err
		}
		if err := m.builder.add(h); err != nil {
			return progress{}, err
		}
		p := progress{consumed: HeaderRecordLen}
		if m.builder.done() {
			m.finishSchema()
			p.schemaDone = true
		}
		return p, nil

	case StateParsingRows:
		width := m.schema.RowWidth
		if width == 0 {
			// A schema without headers has no rows. Any further bytes can only
			// be header records beyond the declared count.
			if len(b) > 0 {
				return progress{}, errors.Wrapf(ErrSchemaOverrun,
					"%d bytes follow a schema with no headers", redact.Safe(len(b)))
			}
			return progress{required: 1}, nil
		}
		if len(b) < width {
			return progress{required: width}, nil
		}
		row, err := DecodeRow(m.schema, b[:width])
		if err != nil {
			return progress{}, err
		}
		size, err := BlobRegionSize(row)
		if err != nil {
			return progress{}, err
		}
		if size > uint64(m.maxRowSize) {
			return progress{}, errors.Wrapf(ErrRowTooLarge,
				"blob region of %d bytes exceeds MaxRowSize %d",
				redact.SafeUint(size), redact.Safe(m.maxRowSize))
		}
		m.pending = &pendingRow{row: row, blobLen: int(size)}
		m.state = StateResolvingBlobs
		return progress{consumed: width}, nil

	case StateResolvingBlobs:
		n := m.pending.blobLen
		if len(b) < n {
			return progress{required: n}, nil
		}
		row := m.pending.row
		// Zero-length references resolve against an empty region.
		if err := ResolveBlobs(row, b[:n]); err != nil {
			return progress{}, err
		}
		m.pending = nil
		m.state = StateParsingRows
		return progress{consumed: n, row: row, blobBytes: n}, nil

	default:
		return progress{}, errors.AssertionFailedf("tasr: step in state %s", m.state)
	}
}

func (m *machine) finishSchema() {
	m.schema = m.builder.finish()
	m.builder = schemaBuilder{}
	m.state = StateParsingRows
}

// Decoder is an incremental TASR decoder. Bytes are pushed with Write in
// chunks of any size, including a single byte; each row is passed to the sink
// as soon as its fixed region and blob region have both arrived. Close marks
// the end of the stream.
//
// A Decoder is not safe for concurrent use. It never blocks except inside the
// sink.
type Decoder struct {
	opts *Options
	sink Sink
	w    window
	m    machine
	// required is the window size at which the next step can make progress.
	required int
	// rowStart is the time at which the decoder began waiting for the current
	// row's fixed region.
	rowStart crtime.Mono
	start    crtime.Mono
	stats    Stats
	// err is the error that moved the decoder to StateFailed.
	err    error
	closed bool
}

var _ io.WriteCloser = (*Decoder)(nil)

// NewDecoder returns a Decoder that emits rows to sink. opts may be nil.
func NewDecoder(sink Sink, opts *Options) *Decoder {
	opts = opts.Clone()
	opts.EnsureDefaults()
	return &Decoder{
		opts:  opts,
		sink:  sink,
		w:     makeWindow(opts.InitialWindowSize),
		m:     machine{maxRowSize: opts.MaxRowSize},
		start: crtime.NowMono(),
	}
}

// State returns the current state of the decoder.
func (d *Decoder) State() State {
	return d.m.state
}

// Schema returns the decoded schema, or nil if the header section has not
// been fully decoded.
func (d *Decoder) Schema() *Schema {
	return d.m.schema
}

// Stats returns a snapshot of the decoder's counters.
func (d *Decoder) Stats() Stats {
	s := d.stats
	if s.Duration == 0 {
		s.Duration = d.start.Elapsed()
	}
	return s
}

// Err returns the error that failed the decoder, if any.
func (d *Decoder) Err() error {
	return d.err
}

// Write appends p to the decoder's window and decodes as much of it as
// possible, emitting every completed row. Write does not retain p.
//
// Once the decoder has failed, Write returns the original error. If the sink
// returns ErrSinkClosed, Write returns that error and the decoder is finished.
func (d *Decoder) Write(p []byte) (int, error) {
	switch {
	case d.err != nil:
		return 0, d.err
	case d.closed:
		return 0, errors.AssertionFailedf("tasr: write after close")
	case d.m.state == StateFinished:
		return 0, ErrSinkClosed
	}
	d.stats.Chunks++
	d.w.append(p)
	if err := d.drain(); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close signals the end of the stream. It returns nil if the stream ended
// cleanly on a row boundary, and an error wrapping ErrIncompleteStream if the
// decoder was still waiting for bytes.
func (d *Decoder) Close() error {
	if d.closed {
		return d.err
	}
	d.closed = true
	if d.err != nil {
		return d.err
	}
	switch {
	case d.m.state == StateFinished:
		// The sink stopped the decoder.
	case d.m.state == StateParsingRows && d.w.available() == 0:
		d.m.state = StateFinished
	default:
		return d.fail(errors.Wrapf(ErrIncompleteStream,
			"stream ended with %d of %d bytes required",
			redact.Safe(d.w.available()), redact.Safe(d.required)))
	}
	d.stats.Duration = d.start.Elapsed()
	d.opts.EventListener.Finished(FinishInfo{Schema: d.m.schema, Stats: d.stats})
	return nil
}

// drain runs the state machine until it needs more bytes.
func (d *Decoder) drain() error {
	for d.w.available() >= d.required {
		before := d.m.state
		p, err := d.m.step(d.w.bytes())
		if err != nil {
			return d.fail(err)
		}
		if p.consumed == 0 && p.row == nil {
			if invariants.Enabled && p.required <= d.w.available() {
				panic(errors.AssertionFailedf("tasr: %s requires %d bytes with %d available",
					d.m.state, p.required, d.w.available()))
			}
			d.required = p.required
			return nil
		}
		d.required = 0
		d.advance(p.consumed)
		if p.schemaDone {
			d.opts.EventListener.SchemaParsed(SchemaInfo{
				Schema: d.m.schema,
				Offset: d.w.offset(),
			})
		}
		if p.row != nil {
			if err := d.emit(p.row, p.blobBytes); err != nil {
				return err
			}
		}
		if before != StateParsingRows && d.m.state == StateParsingRows {
			d.rowStart = crtime.NowMono()
		}
	}
	return nil
}

func (d *Decoder) advance(n int) {
	if n == 0 {
		return
	}
	d.w.advance(n)
	d.stats.Bytes += int64(n)
	if m := d.opts.Metrics; m != nil {
		m.BytesConsumed.Add(float64(n))
	}
}

// emit hands a completed row to the sink.
func (d *Decoder) emit(row Row, blobBytes int) error {
	if n := row.unresolved(); n != 0 {
		err := errors.AssertionFailedf("tasr: emitting row with %d unresolved fields", n)
		if invariants.Enabled {
			panic(err)
		}
		return d.fail(err)
	}
	if len(row) != len(d.m.schema.Headers) {
		return d.fail(errors.Mark(errors.AssertionFailedf(
			"tasr: emitting row with %d fields for %d headers", len(row), len(d.m.schema.Headers)),
			ErrFieldCountMismatch))
	}
	d.stats.Rows++
	d.stats.BlobBytes += int64(blobBytes)
	if m := d.opts.Metrics; m != nil {
		m.RowsDecoded.Inc()
		m.BlobBytes.Add(float64(blobBytes))
		m.RowLatency.Observe(float64(d.rowStart.Elapsed()))
	}
	if err := d.sink.Emit(row); err != nil {
		if errors.Is(err, ErrSinkClosed) {
			d.m.state = StateFinished
			d.m.pending = nil
			d.stats.Stopped = true
			d.stats.Duration = d.start.Elapsed()
			return err
		}
		return d.fail(errors.Wrap(err, "tasr: sink"))
	}
	return nil
}

// fail moves the decoder to StateFailed, recording the state in which err
// occurred and the stream offset of the first unconsumed byte.
func (d *Decoder) fail(err error) error {
	de := &DecodeError{State: d.m.state, Offset: d.w.offset(), Err: err}
	d.m.state = StateFailed
	d.m.pending = nil
	d.err = de
	d.stats.Duration = d.start.Elapsed()
	if m := d.opts.Metrics; m != nil {
		m.Errors.WithLabelValues(ErrorKind(err)).Inc()
	}
	d.opts.EventListener.DecodeFailed(DecodeFailureInfo{
		State:  de.State,
		Offset: de.Offset,
		Err:    err,
	})
	return de
}
