// Copyright 2019 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tool

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/tasr"
	"github.com/spf13/cobra"
)

// T is the container for all of the introspection tools.
type T struct {
	Commands []*cobra.Command
	dump     *dumpT
	describe *describeT
	bench    *benchT
	options  *optionsT

	opts        tasr.Options
	optionsPath string
}

// An Option configures the introspection tools.
type Option func(*T)

// Options returns an Option that uses opts as the base decoder options. Values
// read from an --options file take precedence.
func Options(opts *tasr.Options) Option {
	return func(t *T) {
		t.opts = *opts.Clone()
	}
}

// New creates a new introspection tool.
func New(opts ...Option) *T {
	t := &T{}
	for _, opt := range opts {
		opt(t)
	}

	t.dump = newDump(t)
	t.describe = newDescribe(t)
	t.bench = newBench(t)
	t.options = newOptions(t)
	t.Commands = []*cobra.Command{
		t.dump.Root,
		t.describe.Root,
		t.bench.Root,
		t.options.Root,
	}
	for _, cmd := range t.Commands {
		cmd.Flags().StringVar(
			&t.optionsPath, "options", "", "path to an options file (see the options command)")
	}
	return t
}

// loadOptions returns a copy of the base options, overlaid with the options
// file if one was specified. Defaults are left for the decoder to fill in so
// that events are logged to the logger each command chooses.
func (t *T) loadOptions() (*tasr.Options, error) {
	opts := t.opts.Clone()
	if t.optionsPath != "" {
		data, err := os.ReadFile(t.optionsPath)
		if err != nil {
			return nil, err
		}
		if err := opts.Parse(string(data)); err != nil {
			return nil, errors.Wrapf(err, "%s", t.optionsPath)
		}
	}
	return opts, nil
}
