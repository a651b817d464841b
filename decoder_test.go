// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tasr

import (
	"bytes"
	"encoding/hex"
	"fmt"
	randv1 "math/rand"
	"math/rand/v2"
	"strings"
	"testing"
	"time"
	"unicode"

	"github.com/cockroachdb/crlib/crstrings"
	"github.com/cockroachdb/datadriven"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/metamorphic"
	"github.com/cockroachdb/tasr/internal/tasrtest"
	"github.com/cockroachdb/tasr/internal/testutils"
	"github.com/kr/pretty"
	"github.com/stretchr/testify/require"
)

// readRepr parses hex input, ignoring whitespace and trailing # comments.
func readRepr(t testing.TB, str string) []byte {
	var reprBuf bytes.Buffer
	for l := range crstrings.LinesSeq(str) {
		// Remove any trailing comments behind #.
		if i := strings.IndexRune(l, '#'); i >= 0 {
			l = l[:i]
		}
		// Strip all whitespace from the line.
		l = strings.Map(func(r rune) rune {
			if unicode.IsSpace(r) {
				return -1
			}
			return r
		}, l)
		b, err := hex.DecodeString(l)
		if err != nil {
			t.Fatal(err)
		}
		reprBuf.Write(b)
	}
	return reprBuf.Bytes()
}

// feed writes data to d in chunks of the given size.
func feed(d *Decoder, data []byte, chunk int) error {
	for len(data) > 0 {
		n := min(chunk, len(data))
		if _, err := d.Write(data[:n]); err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

// collect decodes data in chunks of the given size, returning the emitted
// rows and the first error.
func collect(t testing.TB, data []byte, chunk int) ([]Row, error) {
	var rows []Row
	d := NewDecoder(SinkFunc(func(row Row) error {
		rows = append(rows, row)
		return nil
	}), &Options{Logger: testutils.Logger{T: t}})
	err := feed(d, data, chunk)
	if err == nil {
		err = d.Close()
	}
	return rows, err
}

func TestDecode(t *testing.T) {
	datadriven.RunTest(t, "testdata/decode", func(t *testing.T, td *datadriven.TestData) string {
		switch td.Cmd {
		case "decode":
			data := readRepr(t, td.Input)
			chunk := max(len(data), 1)
			td.MaybeScanArgs(t, "chunk", &chunk)
			var maxRowSize int
			td.MaybeScanArgs(t, "max-row-size", &maxRowSize)

			var buf bytes.Buffer
			var d *Decoder
			d = NewDecoder(SinkFunc(func(row Row) error {
				fmt.Fprintf(&buf, "row: %s\n", d.Schema().FormatRow(row))
				return nil
			}), &Options{
				MaxRowSize: maxRowSize,
				Logger:     testutils.Logger{T: t},
				EventListener: &EventListener{
					SchemaParsed: func(info SchemaInfo) {
						fmt.Fprintf(&buf, "schema: %s\n", info.Schema)
					},
				},
			})
			err := feed(d, data, chunk)
			if err == nil {
				err = d.Close()
			}
			if err != nil {
				var de *DecodeError
				require.True(t, errors.As(err, &de))
				fmt.Fprintf(&buf, "error: %s in %s at offset %d\n", ErrorKind(err), de.State, de.Offset)
			}
			fmt.Fprintf(&buf, "state: %s\n", d.State())
			return buf.String()
		default:
			return fmt.Sprintf("unknown command: %s", td.Cmd)
		}
	})
}

func idStream() []byte {
	var b tasrtest.Builder
	return b.Preamble(1, 0, 1).Header("id", tasrtest.TagUnsigned, 4).Uint(4, 42).Bytes()
}

func TestDecodeSingleRow(t *testing.T) {
	var rows []Row
	var d *Decoder
	d = NewDecoder(SinkFunc(func(row Row) error {
		rows = append(rows, row)
		return nil
	}), nil)
	require.Equal(t, StateStart, d.State())
	n, err := d.Write(idStream())
	require.NoError(t, err)
	require.Equal(t, len(idStream()), n)
	require.Equal(t, StateParsingRows, d.State())
	require.NoError(t, d.Close())
	require.Equal(t, StateFinished, d.State())

	require.Equal(t, []Row{{UintValue(4, 42)}}, rows)
	require.Equal(t, Version{Major: 1, Minor: 0}, d.Schema().Version)
	require.Equal(t, 4, d.Schema().RowWidth)

	s := d.Stats()
	require.Equal(t, int64(1), s.Rows)
	require.Equal(t, int64(len(idStream())), s.Bytes)
	require.Equal(t, int64(1), s.Chunks)
	require.False(t, s.Stopped)
}

func TestDecodeTruncatedPreamble(t *testing.T) {
	rows, err := collect(t, []byte("TASR01"), 1)
	require.Empty(t, rows)
	require.True(t, errors.Is(err, ErrIncompleteStream))
	require.True(t, IsIncomplete(err))
	require.False(t, IsCorruption(err))
	state, ok := StateOf(err)
	require.True(t, ok)
	require.Equal(t, StateStart, state)
}

func TestDecodeFailedIsAbsorbing(t *testing.T) {
	d := NewDecoder(DiscardSink, &Options{Logger: testutils.Logger{T: t}})
	_, err := d.Write([]byte("XASR0100\x00\x00\x00\x00"))
	require.True(t, errors.Is(err, ErrBadMagic))
	require.True(t, IsCorruption(err))
	require.Equal(t, StateFailed, d.State())

	// Subsequent writes and Close report the original error.
	_, err2 := d.Write(idStream())
	require.Equal(t, err, err2)
	require.Equal(t, err, d.Close())
	require.Equal(t, err, d.Err())
	require.Equal(t, StateFailed, d.State())
}

func TestDecodeRowsDoNotAliasInput(t *testing.T) {
	var b tasrtest.Builder
	b.Preamble(1, 0, 2).
		Header("fixed", tasrtest.TagString, 4).
		Header("var", tasrtest.TagString, 0).
		Fixed(4, "ab").Ref(0, 3).Blob("xyz")
	data := b.Bytes()

	var rows []Row
	d := NewDecoder(SinkFunc(func(row Row) error {
		rows = append(rows, row)
		return nil
	}), nil)
	_, err := d.Write(data)
	require.NoError(t, err)
	require.NoError(t, d.Close())
	for i := range data {
		data[i] = 0xff
	}
	require.Equal(t, []Row{{FixedStringValue("ab"), VarStringValue("xyz")}}, rows)
}

func TestDecodeChunkingInvariance(t *testing.T) {
	seed := uint64(time.Now().UnixNano())
	t.Logf("seed: %d", seed)
	rng := rand.New(rand.NewPCG(0, seed))

	for iter := 0; iter < 20; iter++ {
		cols := tasrtest.RandomColumns(rng, 1+rng.IntN(8))
		data := tasrtest.RandomStream(rng, cols, rng.IntN(50))

		want, err := collect(t, data, len(data)+1)
		require.NoError(t, err)
		for _, r := range want {
			require.Len(t, r, len(cols))
		}

		got, err := collect(t, data, 1)
		require.NoError(t, err)
		if diff := pretty.Diff(want, got); diff != nil {
			t.Fatalf("byte-at-a-time decoding differs:\n%s", strings.Join(diff, "\n"))
		}

		// Feed the stream in chunks of varying sizes.
		nextSize := metamorphic.Weighted[int]{
			{Item: 1, Weight: 4},
			{Item: 2, Weight: 2},
			{Item: 3, Weight: 2},
			{Item: 16, Weight: 2},
			{Item: 29, Weight: 1},
			{Item: 100, Weight: 1},
		}.RandomDeck(randv1.New(randv1.NewSource(rng.Int64())))
		var rows []Row
		d := NewDecoder(SinkFunc(func(row Row) error {
			rows = append(rows, row)
			return nil
		}), &Options{InitialWindowSize: 1 + rng.IntN(64)})
		for rem := data; len(rem) > 0; {
			n := min(nextSize(), len(rem))
			_, err := d.Write(rem[:n])
			require.NoError(t, err)
			rem = rem[n:]
		}
		require.NoError(t, d.Close())
		if diff := pretty.Diff(want, rows); diff != nil {
			t.Fatalf("randomly chunked decoding differs:\n%s", strings.Join(diff, "\n"))
		}
		require.Equal(t, int64(len(data)), d.Stats().Bytes)
	}
}

func TestDecodeTruncationIsIncomplete(t *testing.T) {
	rng := rand.New(rand.NewPCG(0, uint64(time.Now().UnixNano())))
	cols := tasrtest.RandomColumns(rng, 4)
	data := tasrtest.RandomStream(rng, cols, 10)
	full, err := collect(t, data, len(data))
	require.NoError(t, err)

	// Every proper prefix either ends on a row boundary, yielding a prefix of
	// the rows, or is reported as incomplete.
	for n := 0; n < len(data); n++ {
		rows, err := collect(t, data[:n], 1+rng.IntN(8))
		if len(rows) > 0 {
			require.Equal(t, full[:len(rows)], rows)
		}
		if err != nil {
			require.Truef(t, IsIncomplete(err), "prefix %d: %v", n, err)
		}
	}
}

func TestDecodeMaxRowSize(t *testing.T) {
	opts := &Options{MaxRowSize: 50, Logger: testutils.Logger{T: t}}

	// A 16 byte slot followed by a 40 byte fixed string is wider than 50 bytes.
	var b tasrtest.Builder
	b.Preamble(1, 0, 2).
		Header("a", tasrtest.TagString, 0).
		Header("b", tasrtest.TagString, 40)
	d := NewDecoder(DiscardSink, opts)
	_, err := d.Write(b.Bytes())
	require.True(t, errors.Is(err, ErrRowTooLarge), "%v", err)
	require.False(t, IsCorruption(err))
	require.Equal(t, "row_too_large", ErrorKind(err))
	state, _ := StateOf(err)
	require.Equal(t, StateParsingHeaders, state)

	// A reference that would require buffering a 100 byte blob region.
	b = tasrtest.Builder{}
	b.Preamble(1, 0, 1).Header("a", tasrtest.TagString, 0).Ref(0, 100)
	d = NewDecoder(DiscardSink, opts)
	_, err = d.Write(b.Bytes())
	require.True(t, errors.Is(err, ErrRowTooLarge), "%v", err)
	require.False(t, errors.Is(err, ErrBlobBounds))
	require.Equal(t, StateFailed, d.State())
	state, _ = StateOf(err)
	require.Equal(t, StateParsingRows, state)
}

func TestDecodeEmptyBlobRef(t *testing.T) {
	// An all-zero slot is a reference to zero bytes at offset zero, and every
	// row consisting only of such references has an empty blob region.
	var b tasrtest.Builder
	b.Preamble(1, 0, 2).
		Header("a", tasrtest.TagString, 0).
		Header("b", tasrtest.TagString, 0)
	b.Ref(0, 0).Ref(0, 0)
	b.Ref(0, 0).Ref(0, 2).Blob("hi")
	b.Ref(0, 0).Inline("x")

	want := []Row{
		{VarStringValue(""), VarStringValue("")},
		{VarStringValue(""), VarStringValue("hi")},
		{VarStringValue(""), VarStringValue("x")},
	}
	for _, chunk := range []int{1, 3, len(b.Bytes())} {
		rows, err := collect(t, b.Bytes(), chunk)
		require.NoError(t, err, "chunk %d", chunk)
		require.Equal(t, want, rows, "chunk %d", chunk)
	}
}

func TestDecodeSinkStop(t *testing.T) {
	var b tasrtest.Builder
	b.Preamble(1, 0, 1).Header("n", tasrtest.TagUnsigned, 1)
	for i := 0; i < 10; i++ {
		b.Uint(1, uint64(i))
	}

	var rows []Row
	var finished []FinishInfo
	d := NewDecoder(SinkFunc(func(row Row) error {
		rows = append(rows, row)
		if len(rows) == 3 {
			return errors.Wrap(ErrSinkClosed, "enough")
		}
		return nil
	}), &Options{
		EventListener: &EventListener{
			Finished: func(info FinishInfo) { finished = append(finished, info) },
		},
	})
	_, err := d.Write(b.Bytes())
	require.True(t, errors.Is(err, ErrSinkClosed))
	require.Equal(t, StateFinished, d.State())
	require.Len(t, rows, 3)
	require.True(t, d.Stats().Stopped)

	_, err = d.Write([]byte{0})
	require.True(t, errors.Is(err, ErrSinkClosed))
	require.NoError(t, d.Close())
	require.Len(t, finished, 1)
	require.True(t, finished[0].Stats.Stopped)
	require.Equal(t, int64(3), finished[0].Stats.Rows)
}

func TestDecodeSinkError(t *testing.T) {
	boom := errors.New("boom")
	d := NewDecoder(SinkFunc(func(Row) error { return boom }), &Options{Logger: testutils.Logger{T: t}})
	_, err := d.Write(idStream())
	require.True(t, errors.Is(err, boom))
	require.Equal(t, StateFailed, d.State())
	state, ok := StateOf(err)
	require.True(t, ok)
	require.Equal(t, StateParsingRows, state)
	require.Equal(t, "other", ErrorKind(err))
}

func TestDecoderEvents(t *testing.T) {
	decode := func(data []byte) string {
		var log testutils.Buffer
		listener := MakeLoggingEventListener(testutils.Logger{T: t, Buf: &log})
		d := NewDecoder(DiscardSink, &Options{EventListener: &listener})
		_, err := d.Write(data)
		require.NoError(t, err)
		_ = d.Close()
		return log.String()
	}

	log := decode(idStream())
	require.Contains(t, log, "schema v01.00 parsed: 1 headers, row width 4, rows at offset 40\n")
	require.Contains(t, log, "decoding finished: 1 rows")

	log = decode([]byte("TASR01"))
	require.Contains(t, log, "stream truncated in state Start at offset 0")
	require.NotContains(t, log, "decoding finished")
}

func TestStateString(t *testing.T) {
	for s, want := range map[State]string{
		StateStart:          "Start",
		StateParsingHeaders: "ParsingHeaders",
		StateParsingRows:    "ParsingRows",
		StateResolvingBlobs: "ResolvingBlobs",
		StateFinished:       "Finished",
		StateFailed:         "Failed",
		State(17):           "State(17)",
	} {
		require.Equal(t, want, s.String())
	}
}
