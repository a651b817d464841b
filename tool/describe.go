// Copyright 2019 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tool

import (
	"fmt"
	"io"
	"os"

	"github.com/cockroachdb/tasr"
	"github.com/cockroachdb/tasr/internal/binfmt"
	"github.com/spf13/cobra"
)

// describeT implements the describe command.
type describeT struct {
	Root *cobra.Command
	t    *T

	rows    int
	limit   int64
	hexdump bool
}

func newDescribe(t *T) *describeT {
	d := &describeT{t: t}
	d.Root = &cobra.Command{
		Use:   "describe <tasr-files>",
		Short: "print the binary layout of TASR files",
		Long: `
Print an annotated hex rendering of the preamble, header records, rows and
blob regions of each file. Rendering stops at the first truncated or
malformed structure.
`,
		Args: cobra.MinimumNArgs(1),
		Run:  d.runDescribe,
	}
	d.Root.Flags().IntVar(
		&d.rows, "rows", 10, "maximum number of rows to describe (0 for all)")
	d.Root.Flags().Int64Var(
		&d.limit, "limit", 1<<20, "maximum number of bytes to read from each file (0 for all)")
	d.Root.Flags().BoolVar(
		&d.hexdump, "hexdump", false, "also print a plain hex dump of the bytes read")
	return d
}

func (d *describeT) runDescribe(cmd *cobra.Command, args []string) {
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
	for _, arg := range args {
		func() {
			f, err := os.Open(arg)
			if err != nil {
				fmt.Fprintf(stderr, "%s\n", err)
				return
			}
			defer f.Close()

			var r io.Reader = f
			if d.limit > 0 {
				r = io.LimitReader(f, d.limit)
			}
			data, err := io.ReadAll(r)
			if err != nil {
				fmt.Fprintf(stderr, "%s: %s\n", arg, err)
				return
			}
			fmt.Fprintf(stdout, "%s\n", arg)
			fmt.Fprint(stdout, tasr.Describe(data, d.rows))
			if d.hexdump {
				binfmt.FHexDump(stdout, data, 16, true /* includeOffsets */)
			}
		}()
	}
}
