// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tasr

import (
	"time"

	"github.com/cockroachdb/crlib/crhumanize"
	"github.com/cockroachdb/redact"
	"github.com/prometheus/client_golang/prometheus"
)

// Stats holds the counters of a single decoding session.
type Stats struct {
	// Rows is the number of rows emitted to the sink.
	Rows int64
	// Bytes is the number of stream bytes consumed, including the preamble,
	// header records and blob regions.
	Bytes int64
	// BlobBytes is the number of bytes consumed from blob regions.
	BlobBytes int64
	// Chunks is the number of non-rejected calls to Decoder.Write.
	Chunks int64
	// Duration is the time from the creation of the decoder until the end of
	// the stream, or until now if the stream has not ended.
	Duration time.Duration
	// Stopped is set if the sink asked the decoder to stop.
	Stopped bool
}

func (s Stats) String() string {
	return redact.StringWithoutMarkers(s)
}

// SafeFormat implements redact.SafeFormatter.
func (s Stats) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("%s rows, %s (%s in blobs) from %s chunks in %s",
		crhumanize.Count(s.Rows, crhumanize.Compact),
		crhumanize.Bytes(s.Bytes, crhumanize.Compact, crhumanize.OmitI),
		crhumanize.Bytes(s.BlobBytes, crhumanize.Compact, crhumanize.OmitI),
		crhumanize.Count(s.Chunks, crhumanize.Compact),
		redact.Safe(s.Duration.Round(time.Microsecond)))
}

// Metrics holds the prometheus collectors a Decoder updates. A single Metrics
// may be shared by any number of decoders.
type Metrics struct {
	// RowsDecoded counts rows emitted to sinks.
	RowsDecoded prometheus.Counter
	// BytesConsumed counts stream bytes consumed.
	BytesConsumed prometheus.Counter
	// BlobBytes counts bytes consumed from blob regions.
	BlobBytes prometheus.Counter
	// Errors counts decoder failures, labelled by the kind returned by
	// ErrorKind.
	Errors *prometheus.CounterVec
	// RowLatency observes the time in nanoseconds from the moment the decoder
	// starts waiting for a row's fixed region until the row is emitted.
	RowLatency prometheus.Histogram
}

// NewMetrics returns a Metrics whose collectors are named with the "tasr_"
// prefix.
func NewMetrics() *Metrics {
	return &Metrics{
		RowsDecoded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tasr_rows_decoded_total",
			Help: "Rows emitted to sinks.",
		}),
		BytesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tasr_bytes_consumed_total",
			Help: "Stream bytes consumed.",
		}),
		BlobBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tasr_blob_bytes_total",
			Help: "Bytes consumed from blob regions.",
		}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tasr_errors_total",
			Help: "Decoder failures by kind.",
		}, []string{"kind"}),
		RowLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tasr_row_latency_nanos",
			Help:    "Time from the start of a row to its emission.",
			Buckets: []float64{1e3, 1e4, 1e5, 1e6, 1e7, 1e8, 1e9},
		}),
	}
}

// Collectors returns every collector in m.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.RowsDecoded,
		m.BytesConsumed,
		m.BlobBytes,
		m.Errors,
		m.RowLatency,
	}
}

// Register registers every collector in m with r.
func (m *Metrics) Register(r prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return nil
}
