package clusterkit

import (
	"sync/atomic"
	"time"
)

// MetricsCollector receives operation counts and latencies from an Index
// and the pipeline stages built on top of it.
type MetricsCollector interface {
	// RecordInsert records a single vector insertion.
	RecordInsert(duration time.Duration)

	// RecordBatchInsert records a batch insertion of n vectors.
	RecordBatchInsert(n int, duration time.Duration)

	// RecordSearch records a nearest-neighbor query.
	RecordSearch(duration time.Duration, found int)

	// RecordFit records an embedding or clustering fit over n samples.
	RecordFit(n int, duration time.Duration)

	// RecordTransform records an out-of-sample transform of n points.
	RecordTransform(n int, duration time.Duration)

	// RecordError records a failed operation.
	RecordError(operation string)
}

// NoopMetricsCollector discards all metrics. It is the default.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordInsert(time.Duration)           {}
func (NoopMetricsCollector) RecordBatchInsert(int, time.Duration) {}
func (NoopMetricsCollector) RecordSearch(time.Duration, int)      {}
func (NoopMetricsCollector) RecordFit(int, time.Duration)         {}
func (NoopMetricsCollector) RecordTransform(int, time.Duration)   {}
func (NoopMetricsCollector) RecordError(string)                   {}

// BasicMetricsCollector counts operations and accumulates latencies with
// atomics. Safe for concurrent use.
type BasicMetricsCollector struct {
	inserts       atomic.Int64
	batchInserts  atomic.Int64
	batchVectors  atomic.Int64
	searches      atomic.Int64
	searchResults atomic.Int64
	fits          atomic.Int64
	transforms    atomic.Int64
	errors        atomic.Int64

	insertNanos    atomic.Int64
	searchNanos    atomic.Int64
	fitNanos       atomic.Int64
	transformNanos atomic.Int64
}

// NewBasicMetricsCollector returns a zeroed collector.
func NewBasicMetricsCollector() *BasicMetricsCollector {
	return &BasicMetricsCollector{}
}

func (c *BasicMetricsCollector) RecordInsert(d time.Duration) {
	c.inserts.Add(1)
	c.insertNanos.Add(int64(d))
}

func (c *BasicMetricsCollector) RecordBatchInsert(n int, d time.Duration) {
	c.batchInserts.Add(1)
	c.batchVectors.Add(int64(n))
	c.insertNanos.Add(int64(d))
}

func (c *BasicMetricsCollector) RecordSearch(d time.Duration, found int) {
	c.searches.Add(1)
	c.searchResults.Add(int64(found))
	c.searchNanos.Add(int64(d))
}

func (c *BasicMetricsCollector) RecordFit(n int, d time.Duration) {
	c.fits.Add(1)
	c.fitNanos.Add(int64(d))
}

func (c *BasicMetricsCollector) RecordTransform(n int, d time.Duration) {
	c.transforms.Add(1)
	c.transformNanos.Add(int64(d))
}

func (c *BasicMetricsCollector) RecordError(string) {
	c.errors.Add(1)
}

// Snapshot is a point-in-time copy of the collector's counters.
type Snapshot struct {
	Inserts       int64
	BatchInserts  int64
	BatchVectors  int64
	Searches      int64
	SearchResults int64
	Fits          int64
	Transforms    int64
	Errors        int64

	InsertTime    time.Duration
	SearchTime    time.Duration
	FitTime       time.Duration
	TransformTime time.Duration
}

// Snapshot returns the current counter values.
func (c *BasicMetricsCollector) Snapshot() Snapshot {
	return Snapshot{
		Inserts:       c.inserts.Load(),
		BatchInserts:  c.batchInserts.Load(),
		BatchVectors:  c.batchVectors.Load(),
		Searches:      c.searches.Load(),
		SearchResults: c.searchResults.Load(),
		Fits:          c.fits.Load(),
		Transforms:    c.transforms.Load(),
		Errors:        c.errors.Load(),
		InsertTime:    time.Duration(c.insertNanos.Load()),
		SearchTime:    time.Duration(c.searchNanos.Load()),
		FitTime:       time.Duration(c.fitNanos.Load()),
		TransformTime: time.Duration(c.transformNanos.Load()),
	}
}
