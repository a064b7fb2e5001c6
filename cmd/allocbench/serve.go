package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/cspace"
	"github.com/hupe1980/cspace/metrics"
)

// telemetry owns the registry the run reports to and, when an address is
// configured, the HTTP server exposing it.
type telemetry struct {
	registry *prometheus.Registry
	recorder *metrics.Recorder
	srv      *http.Server
}

func newTelemetry() (*telemetry, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rec, err := metrics.NewRecorder(reg)
	if err != nil {
		return nil, fmt.Errorf("register recorder: %w", err)
	}
	return &telemetry{registry: reg, recorder: rec}, nil
}

// watch exports sp's allocator counters on every scrape.
func (t *telemetry) watch(sp *cspace.Space) error {
	return t.registry.Register(metrics.NewCollector(sp))
}

// serve starts the metrics endpoint on addr. The listener is bound before
// serve returns so that address errors surface immediately.
func (t *telemetry) serve(addr string, logger *cspace.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{Registry: t.registry}))
	t.srv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := t.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server exited", "error", err)
		}
	}()

	logger.Info("serving Prometheus metrics", "addr", ln.Addr().String())
	return nil
}

func (t *telemetry) shutdown(ctx context.Context) error {
	if t.srv == nil {
		return nil
	}
	return t.srv.Shutdown(ctx)
}
