// Copyright 2019 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tool

import (
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/cockroachdb/crlib/crhumanize"
	"github.com/cockroachdb/crlib/crtime"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/tasr"
	"github.com/cockroachdb/tasr/internal/base"
	"github.com/spf13/cobra"
)

const (
	minLatency = 10 * time.Microsecond
	maxLatency = 10 * time.Second
)

// benchT implements the bench command.
type benchT struct {
	Root *cobra.Command
	t    *T

	iterations int
	maxChunk   int
	seed       uint64
}

func newBench(t *T) *benchT {
	b := &benchT{t: t}
	b.Root = &cobra.Command{
		Use:   "bench <tasr-files>",
		Short: "benchmark decoding of TASR files",
		Long: `
Decode each file repeatedly from memory, splitting it into chunks of random
sizes on every pass. Prints the distribution of pass latencies and fails if
any pass decodes rows that differ from the first pass.
`,
		Args: cobra.MinimumNArgs(1),
		Run:  b.runBench,
	}
	b.Root.Flags().IntVarP(
		&b.iterations, "iterations", "n", 10, "number of decoding passes per file")
	b.Root.Flags().IntVar(
		&b.maxChunk, "max-chunk-size", 4096, "maximum size of the chunks fed to the decoder")
	b.Root.Flags().Uint64Var(
		&b.seed, "seed", 0, "seed for chunk sizes (0 picks a random seed)")
	return b
}

func (b *benchT) runBench(cmd *cobra.Command, args []string) {
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
	opts, err := b.t.loadOptions()
	if err != nil {
		fmt.Fprintf(stderr, "%s\n", err)
		return
	}
	if opts.Logger == nil {
		// Failed passes are reported below.
		opts.Logger = base.NoopLogger{}
	}
	if b.iterations <= 0 || b.maxChunk <= 0 {
		fmt.Fprintf(stderr, "--iterations and --max-chunk-size must be positive\n")
		return
	}
	seed := b.seed
	if seed == 0 {
		seed = rand.Uint64()
	}

	for _, arg := range args {
		data, err := os.ReadFile(arg)
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
			continue
		}
		rng := rand.New(rand.NewPCG(seed, 0))
		hist := hdrhistogram.New(minLatency.Nanoseconds(), maxLatency.Nanoseconds(), 1)
		var want uint64
		var stats tasr.Stats
		var total time.Duration
		err = func() error {
			for i := 0; i < b.iterations; i++ {
				start := crtime.NowMono()
				sum, s, err := benchPass(data, opts, rng, b.maxChunk)
				elapsed := start.Elapsed()
				total += elapsed
				_ = hist.RecordValue(elapsed.Nanoseconds())
				if err != nil {
					return errors.Wrapf(err, "pass %d", i)
				}
				if i == 0 {
					want, stats = sum, s
				} else if sum != want {
					return errors.Errorf("pass %d: fingerprint %016x differs from %016x (seed %d)",
						i, sum, want, seed)
				}
			}
			return nil
		}()
		if err != nil {
			fmt.Fprintf(stderr, "%s: %s\n", arg, err)
			continue
		}

		fmt.Fprintf(stdout, "%s: %d passes, %s rows, %s per pass, fingerprint %016x\n",
			arg, b.iterations,
			crhumanize.Count(stats.Rows, crhumanize.Compact),
			crhumanize.Bytes(int64(len(data)), crhumanize.Compact, crhumanize.OmitI),
			want)
		throughput := float64(len(data)) * float64(b.iterations) / total.Seconds()
		fmt.Fprintf(stdout, "  latency p50 %s p95 %s p99 %s max %s, %s/s\n",
			time.Duration(hist.ValueAtQuantile(50)),
			time.Duration(hist.ValueAtQuantile(95)),
			time.Duration(hist.ValueAtQuantile(99)),
			time.Duration(hist.Max()),
			crhumanize.Bytes(int64(throughput), crhumanize.Compact, crhumanize.OmitI))
	}
}

// benchPass decodes data once, feeding the decoder chunks of random sizes in
// [1, maxChunk], and returns the fingerprint of the decoded rows.
func benchPass(
	data []byte, opts *tasr.Options, rng *rand.Rand, maxChunk int,
) (uint64, tasr.Stats, error) {
	rw := newRowWriter(io.Discard, formatText, true /* fingerprint */, true /* quiet */)
	opts = opts.Clone()
	var el tasr.EventListener
	if opts.EventListener != nil {
		el = *opts.EventListener
	}
	el = tasr.TeeEventListener(el, tasr.EventListener{
		SchemaParsed: func(info tasr.SchemaInfo) { rw.setSchema(info.Schema) },
	})
	opts.EventListener = &el

	d := tasr.NewDecoder(tasr.SinkFunc(func(row tasr.Row) error {
		rw.add(row)
		return nil
	}), opts)
	for len(data) > 0 {
		n := min(len(data), 1+rng.IntN(maxChunk))
		if _, err := d.Write(data[:n]); err != nil {
			return 0, d.Stats(), err
		}
		data = data[n:]
	}
	if err := d.Close(); err != nil {
		return 0, d.Stats(), err
	}
	return rw.finish(), d.Stats(), nil
}
