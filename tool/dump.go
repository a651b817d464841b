// Copyright 2019 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tool

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/cockroachdb/tasr"
	"github.com/cockroachdb/tasr/internal/base"
	"github.com/spf13/cobra"
)

// dumpT implements the dump command.
type dumpT struct {
	Root *cobra.Command
	t    *T

	chunkSize   int
	format      rowFormat
	fingerprint bool
	rate        int64
	queue       bool
	verbose     bool
}

func newDump(t *T) *dumpT {
	d := &dumpT{t: t, format: formatText}
	d.Root = &cobra.Command{
		Use:   "dump <tasr-files>",
		Short: "print the rows of TASR files",
		Long: `
Decode each TASR file and print its schema followed by one line per row.
Rows are printed as name=value pairs, or as a table with --format=table.
Decoding errors are reported after every row that preceded them.
`,
		Args: cobra.MinimumNArgs(1),
		Run:  d.runDump,
	}
	d.Root.Flags().IntVar(
		&d.chunkSize, "chunk-size", 0, "bytes read per chunk (default read_buffer_size)")
	d.Root.Flags().Var(
		&d.format, "format", "row format: text or table")
	d.Root.Flags().BoolVar(
		&d.fingerprint, "fingerprint", false, "print an xxhash fingerprint of the decoded rows")
	d.Root.Flags().Int64Var(
		&d.rate, "rate", 0, "limit reads to this many bytes per second (0 is unlimited)")
	d.Root.Flags().BoolVar(
		&d.queue, "queue", false, "decode on a separate goroutine through a bounded queue")
	d.Root.Flags().BoolVarP(
		&d.verbose, "verbose", "v", false, "log decoder events and statistics to stderr")
	return d
}

func (d *dumpT) runDump(cmd *cobra.Command, args []string) {
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
	opts, err := d.t.loadOptions()
	if err != nil {
		fmt.Fprintf(stderr, "%s\n", err)
		return
	}
	if d.chunkSize > 0 {
		opts.ReadBufferSize = d.chunkSize
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	for _, arg := range args {
		func() {
			f, err := os.Open(arg)
			if err != nil {
				fmt.Fprintf(stderr, "%s\n", err)
				return
			}
			defer f.Close()

			fmt.Fprintf(stdout, "%s\n", arg)
			var r io.Reader = f
			if d.rate > 0 {
				r = newPacedReader(ctx, r, d.rate)
			}
			rw := newRowWriter(stdout, d.format, d.fingerprint, false /* quiet */)
			stats, err := decodeRows(ctx, r, d.fileOptions(opts, stderr), d.queue, rw)
			sum := rw.finish()
			if err != nil {
				fmt.Fprintf(stderr, "%s: %s\n", arg, err)
			}
			if d.fingerprint {
				fmt.Fprintf(stdout, "fingerprint %016x\n", sum)
			}
			if d.verbose {
				fmt.Fprintf(stderr, "%s: %s\n", arg, stats)
			}
		}()
	}
}

// fileOptions returns the options used to decode a single file.
func (d *dumpT) fileOptions(opts *tasr.Options, stderr io.Writer) *tasr.Options {
	opts = opts.Clone()
	if d.verbose {
		opts.Logger = writerLogger{w: stderr}
		el := tasr.MakeLoggingEventListener(opts.Logger)
		opts.EventListener = &el
	} else {
		opts.Logger = base.NoopLogger{}
	}
	return opts
}

// decodeRows decodes r into rw, either synchronously or, if queued is set,
// through tasr.Run.
func decodeRows(
	ctx context.Context, r io.Reader, opts *tasr.Options, queued bool, rw *rowWriter,
) (tasr.Stats, error) {
	var el tasr.EventListener
	if opts.EventListener != nil {
		el = *opts.EventListener
	}
	if !queued {
		el = tasr.TeeEventListener(el, tasr.EventListener{
			SchemaParsed: func(info tasr.SchemaInfo) { rw.setSchema(info.Schema) },
		})
		opts.EventListener = &el
		return tasr.Decode(ctx, r, tasr.SinkFunc(func(row tasr.Row) error {
			rw.add(row)
			return nil
		}), opts)
	}

	// The schema event fires on the decoding goroutine. It is only read here
	// once Run has returned, for streams without rows.
	var schema atomic.Pointer[tasr.Schema]
	el = tasr.TeeEventListener(el, tasr.EventListener{
		SchemaParsed: func(info tasr.SchemaInfo) { schema.Store(info.Schema) },
	})
	opts.EventListener = &el
	stats, err := tasr.Run(ctx, r, opts, func(s *tasr.Schema, row tasr.Row) error {
		rw.setSchema(s)
		rw.add(row)
		return nil
	})
	rw.setSchema(schema.Load())
	return stats, err
}
