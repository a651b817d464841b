// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tasr

import (
	"bytes"
	"context"
	"io"
	"testing"
	"testing/iotest"
	"time"

	"github.com/cockroachdb/crlib/testutils/leaktest"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/tasr/internal/tasrtest"
	"github.com/cockroachdb/tasr/internal/testutils"
	"github.com/stretchr/testify/require"
)

// countStream returns a stream with a single UINT 2 column holding 0..n-1.
func countStream(n int) []byte {
	var b tasrtest.Builder
	b.Preamble(1, 0, 1).Header("n", tasrtest.TagUnsigned, 2)
	for i := 0; i < n; i++ {
		b.Uint(2, uint64(i))
	}
	return b.Bytes()
}

func TestDecodeReader(t *testing.T) {
	data := countStream(100)
	var got []uint64
	sink := SinkFunc(func(row Row) error {
		got = append(got, row[0].Uint)
		return nil
	})
	stats, err := Decode(context.Background(), iotest.OneByteReader(bytes.NewReader(data)), sink,
		&Options{ReadBufferSize: 7})
	require.NoError(t, err)
	require.Len(t, got, 100)
	for i, v := range got {
		require.Equal(t, uint64(i), v)
	}
	require.Equal(t, int64(100), stats.Rows)
	require.Equal(t, int64(len(data)), stats.Bytes)
	require.Equal(t, int64(len(data)), stats.Chunks)
	require.False(t, stats.Stopped)
}

func TestDecodeReaderErrors(t *testing.T) {
	ctx := context.Background()
	opts := &Options{Logger: testutils.Logger{T: t}}

	// Truncated input.
	data := countStream(3)
	_, err := Decode(ctx, bytes.NewReader(data[:len(data)-1]), DiscardSink, opts)
	require.True(t, IsIncomplete(err))

	// Read errors are returned as is.
	readErr := errors.New("disk on fire")
	_, err = Decode(ctx, iotest.ErrReader(readErr), DiscardSink, opts)
	require.True(t, errors.Is(err, readErr))
	_, ok := StateOf(err)
	require.False(t, ok)

	// Data arriving along with io.EOF is decoded.
	stats, err := Decode(ctx, iotest.DataErrReader(bytes.NewReader(data)), DiscardSink, opts)
	require.NoError(t, err)
	require.Equal(t, int64(3), stats.Rows)

	// A canceled context stops the read loop.
	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err = Decode(cctx, bytes.NewReader(data), DiscardSink, opts)
	require.True(t, errors.Is(err, context.Canceled))
}

func TestDecodeReaderStop(t *testing.T) {
	n := 0
	stats, err := Decode(context.Background(), bytes.NewReader(countStream(50)), SinkFunc(func(Row) error {
		n++
		if n == 10 {
			return ErrSinkClosed
		}
		return nil
	}), nil)
	require.NoError(t, err)
	require.True(t, stats.Stopped)
	require.Equal(t, int64(10), stats.Rows)
}

func TestQueue(t *testing.T) {
	defer leaktest.AfterTest(t)()
	ctx := context.Background()

	q := NewQueue(2)
	require.NoError(t, q.Emit(Row{UintValue(1, 1)}))
	require.NoError(t, q.Emit(Row{UintValue(1, 2)}))
	require.Equal(t, 2, q.Len())

	// A full queue blocks the producer until the consumer catches up.
	emitted := make(chan error, 1)
	go func() { emitted <- q.Emit(Row{UintValue(1, 3)}) }()
	select {
	case <-emitted:
		t.Fatal("emit did not block on a full queue")
	case <-time.After(10 * time.Millisecond):
	}
	row, err := q.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, Row{UintValue(1, 1)}, row)
	require.NoError(t, <-emitted)

	// Rows queued before Finish are delivered before the error.
	boom := errors.New("boom")
	q.Finish(boom)
	for _, want := range []uint64{2, 3} {
		row, err := q.Next(ctx)
		require.NoError(t, err)
		require.Equal(t, want, row[0].Uint)
	}
	_, err = q.Next(ctx)
	require.Equal(t, boom, err)

	// Finishing without an error ends with io.EOF.
	q = NewQueue(0)
	q.Finish(nil)
	_, err = q.Next(ctx)
	require.Equal(t, io.EOF, err)
}

func TestQueueClose(t *testing.T) {
	defer leaktest.AfterTest(t)()

	q := NewQueue(1)
	require.NoError(t, q.Emit(Row{}))
	emitted := make(chan error, 1)
	go func() { emitted <- q.Emit(Row{}) }()

	// Closing unblocks a producer waiting on a full queue.
	q.Close()
	q.Close()
	require.True(t, errors.Is(<-emitted, ErrSinkClosed))
	require.True(t, errors.Is(q.Emit(Row{}), ErrSinkClosed))

	// Next honors context cancellation.
	q = NewQueue(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := q.Next(ctx)
	require.True(t, errors.Is(err, context.Canceled))
}

func TestRun(t *testing.T) {
	defer leaktest.AfterTest(t)()

	data := countStream(500)
	var got []uint64
	stats, err := Run(context.Background(), bytes.NewReader(data), &Options{QueueCapacity: 3, ReadBufferSize: 5},
		func(s *Schema, row Row) error {
			if s.RowWidth != 2 {
				return errors.Newf("unexpected schema %s", s)
			}
			got = append(got, row[0].Uint)
			return nil
		})
	require.NoError(t, err)
	require.Len(t, got, 500)
	require.Equal(t, uint64(499), got[499])
	require.Equal(t, int64(500), stats.Rows)
}

func TestRunConsumerError(t *testing.T) {
	defer leaktest.AfterTest(t)()

	stop := errors.New("stop")
	n := 0
	stats, err := Run(context.Background(), bytes.NewReader(countStream(1000)), &Options{QueueCapacity: 4},
		func(_ *Schema, row Row) error {
			n++
			if n == 5 {
				return stop
			}
			return nil
		})
	require.True(t, errors.Is(err, stop))
	require.Equal(t, 5, n)
	// The producer stops once the queue is closed; it may have emitted a few
	// rows into the queue beforehand.
	require.True(t, stats.Stopped)
	require.Less(t, stats.Rows, int64(1000))
}

func TestRunDecodeError(t *testing.T) {
	defer leaktest.AfterTest(t)()

	data := countStream(20)
	var n int
	_, err := Run(context.Background(), bytes.NewReader(data[:len(data)-1]),
		&Options{Logger: testutils.Logger{T: t}},
		func(*Schema, Row) error {
			n++
			return nil
		})
	require.True(t, IsIncomplete(err))
	// Every complete row is delivered before the error.
	require.Equal(t, 19, n)
}
