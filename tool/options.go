// Copyright 2019 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tool

import (
	"fmt"

	"github.com/spf13/cobra"
)

// optionsT implements the options command.
type optionsT struct {
	Root *cobra.Command
	t    *T
}

func newOptions(t *T) *optionsT {
	o := &optionsT{t: t}
	o.Root = &cobra.Command{
		Use:   "options",
		Short: "print the effective decoder options",
		Long: `
Print the decoder options in the format accepted by --options, after applying
the options file (if any) and filling in defaults.
`,
		Args: cobra.NoArgs,
		Run:  o.runOptions,
	}
	return o
}

func (o *optionsT) runOptions(cmd *cobra.Command, args []string) {
	opts, err := o.t.loadOptions()
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s\n", err)
		return
	}
	opts.EnsureDefaults()
	fmt.Fprint(cmd.OutOrStdout(), opts.String())
}
