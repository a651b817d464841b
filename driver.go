// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tasr

import (
	"context"
	"io"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"
)

// Decode reads r until EOF, decoding the stream and emitting every row to
// sink. It reads Options.ReadBufferSize bytes at a time and checks ctx between
// reads.
//
// If the sink asks the decoder to stop (see ErrSinkClosed), Decode returns
// with Stats.Stopped set and a nil error.
func Decode(ctx context.Context, r io.Reader, sink Sink, opts *Options) (Stats, error) {
	opts = opts.Clone()
	opts.EnsureDefaults()
	return decodeFrom(ctx, NewDecoder(sink, opts), r, opts.ReadBufferSize)
}

func decodeFrom(ctx context.Context, d *Decoder, r io.Reader, bufSize int) (Stats, error) {
	buf := make([]byte, bufSize)
	for {
		if err := ctx.Err(); err != nil {
			return d.Stats(), err
		}
		n, readErr := r.Read(buf)
		if n > 0 {
			if _, err := d.Write(buf[:n]); err != nil {
				if errors.Is(err, ErrSinkClosed) && d.State() == StateFinished {
					return d.Stats(), d.Close()
				}
				return d.Stats(), err
			}
		}
		switch {
		case readErr == io.EOF:
			err := d.Close()
			return d.Stats(), err
		case readErr != nil:
			return d.Stats(), errors.Wrap(readErr, "tasr: reading stream")
		}
	}
}

// Run decodes r on one goroutine and calls fn for every row on another,
// connected by a Queue of Options.QueueCapacity rows. The schema passed to fn
// is fully decoded.
//
// If fn returns an error, the queue is closed, the decoder stops after the
// row it is currently emitting, and Run returns the error. Decoding errors
// are returned after fn has seen every row that preceded them.
func Run(
	ctx context.Context, r io.Reader, opts *Options, fn func(*Schema, Row) error,
) (Stats, error) {
	opts = opts.Clone()
	opts.EnsureDefaults()
	q := NewQueue(opts.QueueCapacity)
	d := NewDecoder(q, opts)

	var stats Stats
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stats, err = decodeFrom(ctx, d, r, opts.ReadBufferSize)
		// The error is delivered to the consumer after the rows that
		// preceded it.
		q.Finish(err)
		return nil
	})
	g.Go(func() error {
		defer q.Close()
		for {
			row, err := q.Next(ctx)
			if err == io.EOF {
				return nil
			} else if err != nil {
				return err
			}
			// The schema is complete before the first row is queued.
			if err := fn(d.Schema(), row); err != nil {
				return err
			}
		}
	})
	err := g.Wait()
	return stats, err
}
