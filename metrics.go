package solentbase

import (
	"sync/atomic"
	"time"

	"github.com/RogerMarsh/solentware-base-sub000/archive"
	"github.com/RogerMarsh/solentware-base-sub000/bulk"
	"github.com/RogerMarsh/solentware-base-sub000/index"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like
// Prometheus.
//
// Record* methods for single operations are called on the operation's
// thread. The *Stats methods absorb the counters the inner layers keep
// themselves: index maintenance counters arrive once per index when a
// transaction ends, load counters when a deferred load finishes, guard
// counters when a guarded load completes.
type MetricsCollector interface {
	// RecordPut is called after each record store.
	RecordPut(duration time.Duration, err error)

	// RecordUpdate is called after each record update.
	RecordUpdate(duration time.Duration, err error)

	// RecordDelete is called after each record delete.
	RecordDelete(duration time.Duration, err error)

	// RecordFind is called after each index scan.
	RecordFind(duration time.Duration, err error)

	// RecordIndexStats absorbs one index's maintenance counters.
	RecordIndexStats(file, field string, stats index.Stats)

	// RecordLoadStats absorbs one deferred load's counters.
	RecordLoadStats(file string, stats bulk.Stats)

	// RecordGuardStats absorbs one guard run's transfer counters.
	RecordGuardStats(guard string, stats archive.Stats)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordPut(time.Duration, error)                {}
func (NoopMetricsCollector) RecordUpdate(time.Duration, error)             {}
func (NoopMetricsCollector) RecordDelete(time.Duration, error)             {}
func (NoopMetricsCollector) RecordFind(time.Duration, error)               {}
func (NoopMetricsCollector) RecordIndexStats(string, string, index.Stats)  {}
func (NoopMetricsCollector) RecordLoadStats(string, bulk.Stats)            {}
func (NoopMetricsCollector) RecordGuardStats(string, archive.Stats)        {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	PutCount       atomic.Int64
	PutErrors      atomic.Int64
	PutTotalNanos  atomic.Int64
	UpdateCount    atomic.Int64
	UpdateErrors   atomic.Int64
	DeleteCount    atomic.Int64
	DeleteErrors   atomic.Int64
	FindCount      atomic.Int64
	FindErrors     atomic.Int64
	FindTotalNanos atomic.Int64

	IntToList    atomic.Int64
	ListToBitmap atomic.Int64
	BitmapToList atomic.Int64
	ListToInt    atomic.Int64
	BitmapToInt  atomic.Int64
	BlobReuses   atomic.Int64
	CacheHits    atomic.Int64
	CacheMisses  atomic.Int64

	LoadAdded   atomic.Int64
	LoadFlushes atomic.Int64
	LoadSplices atomic.Int64
	LoadRows    atomic.Int64

	GuardBytesOut atomic.Int64
	GuardBytesIn  atomic.Int64
}

// RecordPut implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPut(duration time.Duration, err error) {
	b.PutCount.Add(1)
	b.PutTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.PutErrors.Add(1)
	}
}

// RecordUpdate implements MetricsCollector.
func (b *BasicMetricsCollector) RecordUpdate(duration time.Duration, err error) {
	b.UpdateCount.Add(1)
	if err != nil {
		b.UpdateErrors.Add(1)
	}
}

// RecordDelete implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDelete(duration time.Duration, err error) {
	b.DeleteCount.Add(1)
	if err != nil {
		b.DeleteErrors.Add(1)
	}
}

// RecordFind implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFind(duration time.Duration, err error) {
	b.FindCount.Add(1)
	b.FindTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.FindErrors.Add(1)
	}
}

// RecordIndexStats implements MetricsCollector.
func (b *BasicMetricsCollector) RecordIndexStats(file, field string, stats index.Stats) {
	b.IntToList.Add(stats.IntToList)
	b.ListToBitmap.Add(stats.ListToBitmap)
	b.BitmapToList.Add(stats.BitmapToList)
	b.ListToInt.Add(stats.ListToInt)
	b.BitmapToInt.Add(stats.BitmapToInt)
	b.BlobReuses.Add(stats.BlobReuses)
	b.CacheHits.Add(stats.CacheHits)
	b.CacheMisses.Add(stats.CacheMisses)
}

// RecordLoadStats implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLoadStats(file string, stats bulk.Stats) {
	b.LoadAdded.Add(stats.Added)
	b.LoadFlushes.Add(stats.Flushes)
	b.LoadSplices.Add(stats.Splices)
	b.LoadRows.Add(stats.Rows)
}

// RecordGuardStats implements MetricsCollector.
func (b *BasicMetricsCollector) RecordGuardStats(guard string, stats archive.Stats) {
	b.GuardBytesOut.Add(stats.BytesOut)
	b.GuardBytesIn.Add(stats.BytesIn)
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		PutCount:      b.PutCount.Load(),
		PutErrors:     b.PutErrors.Load(),
		PutAvgNanos:   avg(b.PutTotalNanos.Load(), b.PutCount.Load()),
		UpdateCount:   b.UpdateCount.Load(),
		UpdateErrors:  b.UpdateErrors.Load(),
		DeleteCount:   b.DeleteCount.Load(),
		DeleteErrors:  b.DeleteErrors.Load(),
		FindCount:     b.FindCount.Load(),
		FindErrors:    b.FindErrors.Load(),
		FindAvgNanos:  avg(b.FindTotalNanos.Load(), b.FindCount.Load()),
		IntToList:     b.IntToList.Load(),
		ListToBitmap:  b.ListToBitmap.Load(),
		BitmapToList:  b.BitmapToList.Load(),
		ListToInt:     b.ListToInt.Load(),
		BitmapToInt:   b.BitmapToInt.Load(),
		BlobReuses:    b.BlobReuses.Load(),
		CacheHits:     b.CacheHits.Load(),
		CacheMisses:   b.CacheMisses.Load(),
		LoadAdded:     b.LoadAdded.Load(),
		LoadFlushes:   b.LoadFlushes.Load(),
		LoadSplices:   b.LoadSplices.Load(),
		LoadRows:      b.LoadRows.Load(),
		GuardBytesOut: b.GuardBytesOut.Load(),
		GuardBytesIn:  b.GuardBytesIn.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	PutCount     int64
	PutErrors    int64
	PutAvgNanos  int64
	UpdateCount  int64
	UpdateErrors int64
	DeleteCount  int64
	DeleteErrors int64
	FindCount    int64
	FindErrors   int64
	FindAvgNanos int64

	IntToList    int64
	ListToBitmap int64
	BitmapToList int64
	ListToInt    int64
	BitmapToInt  int64
	BlobReuses   int64
	CacheHits    int64
	CacheMisses  int64

	LoadAdded   int64
	LoadFlushes int64
	LoadSplices int64
	LoadRows    int64

	GuardBytesOut int64
	GuardBytesIn  int64
}
