// Copyright 2019 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tool

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/tasr"
	"github.com/cockroachdb/tokenbucket"
	"github.com/olekukonko/tablewriter"
)

// rowFormat is a pflag.Value selecting how decoded rows are printed.
type rowFormat string

const (
	formatText  rowFormat = "text"
	formatTable rowFormat = "table"
)

func (f *rowFormat) String() string {
	return string(*f)
}

func (f *rowFormat) Type() string {
	return "format"
}

func (f *rowFormat) Set(spec string) error {
	switch v := rowFormat(spec); v {
	case formatText, formatTable:
		*f = v
		return nil
	default:
		return errors.Errorf("unknown format %q (expected text or table)", spec)
	}
}

// rowWriter prints decoded rows and optionally fingerprints them. The
// fingerprint covers the schema and every row in text form, so it does not
// depend on the output format or on how the input was chunked.
type rowWriter struct {
	w      io.Writer
	format rowFormat
	quiet  bool
	schema *tasr.Schema
	table  *tablewriter.Table
	digest *xxhash.Digest
	rows   int
}

func newRowWriter(w io.Writer, format rowFormat, fingerprint, quiet bool) *rowWriter {
	rw := &rowWriter{w: w, format: format, quiet: quiet}
	if fingerprint {
		rw.digest = xxhash.New()
	}
	return rw
}

// setSchema records the schema the following rows are decoded with. Only the
// first call has an effect.
func (rw *rowWriter) setSchema(s *tasr.Schema) {
	if rw.schema != nil || s == nil {
		return
	}
	rw.schema = s
	if rw.digest != nil {
		fmt.Fprintf(rw.digest, "%s\n", s)
	}
	if rw.quiet {
		return
	}
	fmt.Fprintf(rw.w, "schema %s\n", s)
	if rw.format == formatTable {
		rw.table = tablewriter.NewWriter(rw.w)
		names := make([]string, len(s.Headers))
		for i := range s.Headers {
			names[i] = s.Headers[i].Name
		}
		rw.table.SetAutoFormatHeaders(false)
		rw.table.SetHeader(names)
	}
}

func (rw *rowWriter) add(row tasr.Row) {
	rw.rows++
	line := rw.schema.FormatRow(row)
	if rw.digest != nil {
		fmt.Fprintf(rw.digest, "%s\n", line)
	}
	if rw.quiet {
		return
	}
	if rw.table != nil {
		cells := make([]string, len(row))
		for i := range row {
			cells[i] = row[i].String()
		}
		rw.table.Append(cells)
		return
	}
	fmt.Fprintf(rw.w, "%s\n", line)
}

// finish renders any buffered table and returns the fingerprint, which is
// zero if fingerprinting is disabled.
func (rw *rowWriter) finish() uint64 {
	if rw.table != nil && rw.rows > 0 {
		rw.table.Render()
	}
	if rw.digest == nil {
		return 0
	}
	return rw.digest.Sum64()
}

// pacedReader limits the rate at which bytes are read from r.
type pacedReader struct {
	ctx     context.Context
	r       io.Reader
	limiter *tokenbucket.TokenBucket
}

// newPacedReader returns a reader that reads from r at no more than
// bytesPerSec, with bursts of up to a tenth of a second.
func newPacedReader(ctx context.Context, r io.Reader, bytesPerSec int64) *pacedReader {
	p := &pacedReader{ctx: ctx, r: r, limiter: &tokenbucket.TokenBucket{}}
	rate := tokenbucket.TokensPerSecond(bytesPerSec)
	p.limiter.Init(rate, tokenbucket.Tokens(rate*0.1))
	return p
}

func (p *pacedReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		if werr := p.limiter.WaitCtx(p.ctx, tokenbucket.Tokens(n)); werr != nil {
			return n, werr
		}
	}
	return n, err
}

// writerLogger is a tasr.Logger that writes to an io.Writer, one message per
// line.
type writerLogger struct {
	w io.Writer
}

var _ tasr.Logger = writerLogger{}

func (l writerLogger) Infof(format string, args ...interface{}) {
	l.printf(format, args...)
}

func (l writerLogger) Errorf(format string, args ...interface{}) {
	l.printf(format, args...)
}

func (l writerLogger) Fatalf(format string, args ...interface{}) {
	l.printf(format, args...)
	panic(fmt.Sprintf(format, args...))
}

func (l writerLogger) printf(format string, args ...interface{}) {
	s := fmt.Sprintf(format, args...)
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	_, _ = io.WriteString(l.w, s)
}
