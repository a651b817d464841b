// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package testutils

import (
	"fmt"
	"strings"
	"sync"
	"testing"
)

// Logger is a logger that writes to a testing.TB. If Buf is set, every message
// is also appended to it on its own line so that tests can assert on the log
// output.
type Logger struct {
	T   testing.TB
	Buf *Buffer
}

func (l Logger) Infof(format string, args ...interface{}) {
	l.T.Logf(format, args...)
	l.Buf.addf(format, args...)
}

func (l Logger) Errorf(format string, args ...interface{}) {
	l.T.Logf(format, args...)
	l.Buf.addf(format, args...)
}

func (l Logger) Fatalf(format string, args ...interface{}) {
	l.T.Helper()
	l.T.Fatalf(format, args...)
}

// Buffer collects log lines. It is safe for concurrent use.
type Buffer struct {
	mu    sync.Mutex
	lines []string
}

func (b *Buffer) addf(format string, args ...interface{}) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = append(b.lines, strings.TrimSuffix(fmt.Sprintf(format, args...), "\n"))
}

// String returns the collected lines joined by newlines.
func (b *Buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.lines) == 0 {
		return ""
	}
	return strings.Join(b.lines, "\n") + "\n"
}
