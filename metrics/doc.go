// Package metrics exports cspace allocator statistics and projection
// counters to Prometheus.
//
// Collector reads Space.Stats on every scrape, so the allocator hot path
// stays uninstrumented. Recorder implements cspace.MetricsCollector and
// counts refills, steals and projection operations as they happen.
//
//	reg := prometheus.NewRegistry()
//	rec, err := metrics.NewRecorder(reg)
//	if err != nil {
//	    return err
//	}
//
//	sp := cspace.NewSpace(m, cspace.WithMetricsCollector(rec))
//	reg.MustRegister(metrics.NewCollector(sp))
package metrics
