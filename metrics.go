package cairngo

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    appendCounter  prometheus.Counter
//	    queryHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordAppend(rows int64, duration time.Duration, err error) {
//	    p.appendCounter.Add(float64(rows))
//	    // ... record error state, duration, etc.
//	}
type MetricsCollector interface {
	// RecordConnect is called after each connect attempt.
	RecordConnect(duration time.Duration, err error)

	// RecordAppend is called after each data append.
	// rows is the number of rows accepted by the engine.
	RecordAppend(rows int64, duration time.Duration, err error)

	// RecordQuery is called after each query.
	// rows is the number of rows returned.
	RecordQuery(rows int64, duration time.Duration, err error)

	// RecordDelete is called after each delete operation.
	RecordDelete(duration time.Duration, err error)

	// RecordUpdate is called after each update operation.
	RecordUpdate(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordConnect(time.Duration, error)       {}
func (NoopMetricsCollector) RecordAppend(int64, time.Duration, error) {}
func (NoopMetricsCollector) RecordQuery(int64, time.Duration, error)  {}
func (NoopMetricsCollector) RecordDelete(time.Duration, error)        {}
func (NoopMetricsCollector) RecordUpdate(time.Duration, error)        {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	ConnectCount     atomic.Int64
	ConnectErrors    atomic.Int64
	AppendCount      atomic.Int64
	AppendRows       atomic.Int64
	AppendErrors     atomic.Int64
	AppendTotalNanos atomic.Int64
	QueryCount       atomic.Int64
	QueryRows        atomic.Int64
	QueryErrors      atomic.Int64
	QueryTotalNanos  atomic.Int64
	DeleteCount      atomic.Int64
	DeleteErrors     atomic.Int64
	UpdateCount      atomic.Int64
	UpdateErrors     atomic.Int64
}

// RecordConnect implements MetricsCollector.
func (b *BasicMetricsCollector) RecordConnect(duration time.Duration, err error) {
	b.ConnectCount.Add(1)
	if err != nil {
		b.ConnectErrors.Add(1)
	}
}

// RecordAppend implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAppend(rows int64, duration time.Duration, err error) {
	b.AppendCount.Add(1)
	b.AppendRows.Add(rows)
	b.AppendTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.AppendErrors.Add(1)
	}
}

// RecordQuery implements MetricsCollector.
func (b *BasicMetricsCollector) RecordQuery(rows int64, duration time.Duration, err error) {
	b.QueryCount.Add(1)
	b.QueryRows.Add(rows)
	b.QueryTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.QueryErrors.Add(1)
	}
}

// RecordDelete implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDelete(duration time.Duration, err error) {
	b.DeleteCount.Add(1)
	if err != nil {
		b.DeleteErrors.Add(1)
	}
}

// RecordUpdate implements MetricsCollector.
func (b *BasicMetricsCollector) RecordUpdate(duration time.Duration, err error) {
	b.UpdateCount.Add(1)
	if err != nil {
		b.UpdateErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		ConnectCount:   b.ConnectCount.Load(),
		ConnectErrors:  b.ConnectErrors.Load(),
		AppendCount:    b.AppendCount.Load(),
		AppendRows:     b.AppendRows.Load(),
		AppendErrors:   b.AppendErrors.Load(),
		AppendAvgNanos: avgNanos(b.AppendTotalNanos.Load(), b.AppendCount.Load()),
		QueryCount:     b.QueryCount.Load(),
		QueryRows:      b.QueryRows.Load(),
		QueryErrors:    b.QueryErrors.Load(),
		QueryAvgNanos:  avgNanos(b.QueryTotalNanos.Load(), b.QueryCount.Load()),
		DeleteCount:    b.DeleteCount.Load(),
		DeleteErrors:   b.DeleteErrors.Load(),
		UpdateCount:    b.UpdateCount.Load(),
		UpdateErrors:   b.UpdateErrors.Load(),
	}
}

func avgNanos(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	ConnectCount   int64
	ConnectErrors  int64
	AppendCount    int64
	AppendRows     int64
	AppendErrors   int64
	AppendAvgNanos int64
	QueryCount     int64
	QueryRows      int64
	QueryErrors    int64
	QueryAvgNanos  int64
	DeleteCount    int64
	DeleteErrors   int64
	UpdateCount    int64
	UpdateErrors   int64
}
