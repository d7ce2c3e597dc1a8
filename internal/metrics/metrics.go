// ============================================================================
// PS Metrics - Prometheus live run metrics
// ============================================================================
//
// Package: internal/metrics
// File: metrics.go
// Purpose: expose request outcomes, retries and latency while a batch is sent
//
// Metrics:
//
//   1. Counters:
//      - ps_requests_total{operation,outcome}: terminal records per outcome
//      - ps_retries_total{operation}: channel recoveries followed by a resend
//
//   2. Histogram:
//      - ps_request_latency_seconds{operation}: first send to terminal reply
//
//   3. Gauges:
//      - ps_requests_pending: envelopes not yet handed to a worker
//      - ps_requests_in_flight: envelopes being exchanged
//      - ps_backoff_seconds_total: time spent waiting between attempts
//
// Example queries:
//
//   # throughput
//   rate(ps_requests_total[1m])
//
//   # p95 latency
//   histogram_quantile(0.95, sum by (le) (rate(ps_request_latency_seconds_bucket[5m])))
//
//   # timeout ratio
//   sum(rate(ps_requests_total{outcome="TIMEOUT"}[5m])) / sum(rate(ps_requests_total[5m]))
//
// ============================================================================

package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/SistemasDistribuidos2530/biblioteca-clientes/pkg/types"
)

// Collector records live client metrics.
// It satisfies transport.Observer.
type Collector struct {
	requests       *prometheus.CounterVec
	retries        *prometheus.CounterVec
	latency        *prometheus.HistogramVec
	backoffSeconds prometheus.Counter

	pending  prometheus.Gauge
	inFlight prometheus.Gauge
}

// NewCollector creates a collector registered with the default registerer.
func NewCollector() *Collector {
	return NewCollectorWith(prometheus.DefaultRegisterer)
}

// NewCollectorWith creates a collector registered with reg.
// It panics if the metrics are already registered there.
func NewCollectorWith(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ps_requests_total",
			Help: "Terminal request records by operation and outcome",
		}, []string{"operation", "outcome"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ps_retries_total",
			Help: "Resends after a timeout or channel error",
		}, []string{"operation"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ps_request_latency_seconds",
			Help:    "Time from first send to terminal outcome",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		backoffSeconds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ps_backoff_seconds_total",
			Help: "Seconds scheduled for backoff waits",
		}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ps_requests_pending",
			Help: "Envelopes not yet handed to a worker",
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ps_requests_in_flight",
			Help: "Envelopes currently being exchanged",
		}),
	}

	reg.MustRegister(c.requests, c.retries, c.latency, c.backoffSeconds, c.pending, c.inFlight)
	return c
}

// RetryScheduled records a resend of op after wait.
func (c *Collector) RetryScheduled(op types.Operation, _ int, wait time.Duration, _ error) {
	c.retries.WithLabelValues(string(op)).Inc()
	c.backoffSeconds.Add(wait.Seconds())
}

// RecordFinished records a terminal attempt record.
func (c *Collector) RecordFinished(rec types.AttemptRecord) {
	op := string(rec.Operation)
	c.requests.WithLabelValues(op, string(rec.Outcome)).Inc()
	c.latency.WithLabelValues(op).Observe(rec.Latency())
}

// UpdateQueueStats sets the pending and in-flight gauges.
func (c *Collector) UpdateQueueStats(pending, inFlight int) {
	c.pending.Set(float64(pending))
	c.inFlight.Set(float64(inFlight))
}

// NewServer builds an HTTP server exposing g at /metrics.
func NewServer(addr string, g prometheus.Gatherer) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// StartServer serves the default gatherer on port until ctx is done.
//
// Parameters:
//   - ctx: stops the server when cancelled
//   - port: HTTP port
//
// Returns:
//   - error: listen failure; nil after a clean shutdown
func StartServer(ctx context.Context, port int) error {
	srv := NewServer(fmt.Sprintf(":%d", port), prometheus.DefaultGatherer)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
