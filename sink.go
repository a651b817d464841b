// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tasr

import (
	"context"
	"io"
	"sync"

	"github.com/cockroachdb/errors"
)

// Sink receives decoded rows. Ownership of each row passes to the sink; the
// decoder keeps no reference to it and the row does not alias any decoder
// buffer.
//
// Emit may block, which stalls the decoder. Returning an error that is (or
// wraps) ErrSinkClosed asks the decoder to stop; it is not treated as a
// decoding failure. Any other error fails the decoder.
type Sink interface {
	Emit(row Row) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(row Row) error

// Emit implements Sink.
func (f SinkFunc) Emit(row Row) error {
	return f(row)
}

// DiscardSink is a Sink that drops every row.
var DiscardSink Sink = SinkFunc(func(Row) error { return nil })

// Queue is a bounded hand-off between a producer goroutine driving a Decoder
// and a consumer goroutine. A full queue blocks the producer in Emit, which is
// the only backpressure between the two.
//
// The producer calls Emit for each row and Finish exactly once when decoding
// ends. The consumer calls Next until it returns an error, and Close if it
// stops early.
type Queue struct {
	rows       chan Row
	closed     chan struct{}
	closeOnce  sync.Once
	finishOnce sync.Once

	mu struct {
		sync.Mutex
		// err is the error passed to Finish.
		err error
	}
}

var _ Sink = (*Queue)(nil)

// NewQueue returns a Queue that holds up to capacity rows.
func NewQueue(capacity int) *Queue {
	if capacity < 0 {
		panic(errors.AssertionFailedf("tasr: negative queue capacity %d", capacity))
	}
	return &Queue{
		rows:   make(chan Row, capacity),
		closed: make(chan struct{}),
	}
}

// Emit implements Sink. It blocks while the queue is full and returns
// ErrSinkClosed once the consumer has closed the queue. Emit must not be
// called after Finish.
func (q *Queue) Emit(row Row) error {
	select {
	case <-q.closed:
		return ErrSinkClosed
	default:
	}
	select {
	case q.rows <- row:
		return nil
	case <-q.closed:
		return ErrSinkClosed
	}
}

// Finish marks the end of the rows. Once the consumer has received every
// queued row, Next returns err, or io.EOF if err is nil.
func (q *Queue) Finish(err error) {
	q.finishOnce.Do(func() {
		q.mu.Lock()
		q.mu.err = err
		q.mu.Unlock()
		close(q.rows)
	})
}

// Next returns the next row. It blocks until a row is available, the producer
// finishes, or ctx is done.
func (q *Queue) Next(ctx context.Context) (Row, error) {
	select {
	case row, ok := <-q.rows:
		if !ok {
			q.mu.Lock()
			defer q.mu.Unlock()
			if q.mu.err != nil {
				return nil, q.mu.err
			}
			return nil, io.EOF
		}
		return row, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close is called by the consumer to stop the producer. Pending and future
// calls to Emit return ErrSinkClosed. Close may be called more than once.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		close(q.closed)
	})
}

// Len returns the number of rows waiting in the queue.
func (q *Queue) Len() int {
	return len(q.rows)
}
