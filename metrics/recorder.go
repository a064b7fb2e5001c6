package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/cspace"
)

// Recorder implements cspace.MetricsCollector with Prometheus counters.
type Recorder struct {
	refills        *prometheus.CounterVec
	refillPayloads prometheus.Counter
	refillLatency  prometheus.Histogram
	steals         prometheus.Counter
	stolenPayloads prometheus.Counter
	projections    *prometheus.CounterVec
	copies         *prometheus.CounterVec
}

var _ cspace.MetricsCollector = (*Recorder)(nil)

// NewRecorder creates a recorder and registers its metrics with reg.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		refills: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "allocator",
			Name:      "refill_events_total",
			Help:      "Arena refills by status.",
		}, []string{"status"}),
		refillPayloads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "allocator",
			Name:      "refill_payloads_total",
			Help:      "Payloads obtained by arena refills.",
		}),
		refillLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "allocator",
			Name:      "refill_duration_seconds",
			Help:      "Latency of arena refills.",
			Buckets:   prometheus.ExponentialBuckets(1e-7, 4, 10),
		}),
		steals: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "allocator",
			Name:      "steal_events_total",
			Help:      "Refills served by a neighbouring shard.",
		}),
		stolenPayloads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "allocator",
			Name:      "stolen_payloads_total",
			Help:      "Payloads moved between shards.",
		}),
		projections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "projection",
			Name:      "operations_total",
			Help:      "Projection operations by kind and status.",
		}, []string{"op", "status"}),
		copies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "projection",
			Name:      "copies_total",
			Help:      "Sub-states written by projection operations.",
		}, []string{"op"}),
	}

	for _, c := range []prometheus.Collector{
		r.refills, r.refillPayloads, r.refillLatency, r.steals, r.stolenPayloads, r.projections, r.copies,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// RecordRefill implements cspace.MetricsCollector.
func (r *Recorder) RecordRefill(fresh int, d time.Duration, err error) {
	r.refills.WithLabelValues(status(err)).Inc()
	r.refillPayloads.Add(float64(fresh))
	r.refillLatency.Observe(d.Seconds())
}

// RecordSteal implements cspace.MetricsCollector.
func (r *Recorder) RecordSteal(stolen int) {
	r.steals.Inc()
	r.stolenPayloads.Add(float64(stolen))
}

// RecordProjection implements cspace.MetricsCollector.
func (r *Recorder) RecordProjection(op cspace.ProjectionOp, copies int, err error) {
	r.projections.WithLabelValues(string(op), status(err)).Inc()
	r.copies.WithLabelValues(string(op)).Add(float64(copies))
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
