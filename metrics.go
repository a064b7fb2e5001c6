package cspace

import (
	"sync/atomic"
	"time"
)

// ProjectionOp names a scoped-state projection for metrics.
type ProjectionOp string

const (
	OpExtract    ProjectionOp = "extract"
	OpInject     ProjectionOp = "inject"
	OpCombine    ProjectionOp = "combine"
	OpCopyCommon ProjectionOp = "copy_common"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus;
// package metrics ships a ready-made implementation.
//
// The allocator fast path is never instrumented. Per-shard counters are
// available through Space.Stats instead.
type MetricsCollector interface {
	// RecordRefill is called after a shard carved fresh payloads from the
	// arena. fresh is the number of payloads obtained.
	RecordRefill(fresh int, duration time.Duration, err error)

	// RecordSteal is called after a shard took idle payloads from a neighbour.
	RecordSteal(stolen int)

	// RecordProjection is called after each extract, inject, combine or
	// copy-common operation. copies is the number of sub-states written.
	RecordProjection(op ProjectionOp, copies int, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordRefill(int, time.Duration, error)    {}
func (NoopMetricsCollector) RecordSteal(int)                           {}
func (NoopMetricsCollector) RecordProjection(ProjectionOp, int, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	RefillCount      atomic.Int64
	RefillErrors     atomic.Int64
	RefillPayloads   atomic.Int64
	RefillTotalNanos atomic.Int64
	StealCount       atomic.Int64
	StolenPayloads   atomic.Int64
	ProjectionCount  atomic.Int64
	ProjectionErrors atomic.Int64
	ProjectionCopies atomic.Int64
}

// RecordRefill implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRefill(fresh int, duration time.Duration, err error) {
	b.RefillCount.Add(1)
	b.RefillPayloads.Add(int64(fresh))
	b.RefillTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.RefillErrors.Add(1)
	}
}

// RecordSteal implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSteal(stolen int) {
	b.StealCount.Add(1)
	b.StolenPayloads.Add(int64(stolen))
}

// RecordProjection implements MetricsCollector.
func (b *BasicMetricsCollector) RecordProjection(_ ProjectionOp, copies int, err error) {
	b.ProjectionCount.Add(1)
	b.ProjectionCopies.Add(int64(copies))
	if err != nil {
		b.ProjectionErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		RefillCount:      b.RefillCount.Load(),
		RefillErrors:     b.RefillErrors.Load(),
		RefillPayloads:   b.RefillPayloads.Load(),
		RefillAvgNanos:   b.getAvgRefillNanos(),
		StealCount:       b.StealCount.Load(),
		StolenPayloads:   b.StolenPayloads.Load(),
		ProjectionCount:  b.ProjectionCount.Load(),
		ProjectionErrors: b.ProjectionErrors.Load(),
		ProjectionCopies: b.ProjectionCopies.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgRefillNanos() int64 {
	count := b.RefillCount.Load()
	if count == 0 {
		return 0
	}
	return b.RefillTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	RefillCount      int64
	RefillErrors     int64
	RefillPayloads   int64
	RefillAvgNanos   int64
	StealCount       int64
	StolenPayloads   int64
	ProjectionCount  int64
	ProjectionErrors int64
	ProjectionCopies int64
}
