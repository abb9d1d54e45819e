// Package metrics exposes Prometheus instrumentation for the auth service:
// HTTP request metrics and business operation metrics, all registered on a
// private registry served at /metrics.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// BusinessMetrics records the outcome of auth operations.
type BusinessMetrics interface {
	// RecordOperation counts one operation, e.g. ("auth", "login", "success").
	RecordOperation(ctx context.Context, domain, operation, status string)

	// RecordDuration observes how long the operation took.
	RecordDuration(ctx context.Context, domain, operation string, duration time.Duration, status string)
}

// Provider owns the registry and every collector on it.
type Provider struct {
	registry *prometheus.Registry

	httpInFlight        prometheus.Gauge
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
}

var _ BusinessMetrics = (*Provider)(nil)

// NewProvider registers all collectors under namespace (e.g. "crm").
func NewProvider(namespace string) *Provider {
	p := &Provider{
		registry: prometheus.NewRegistry(),

		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_in_flight_requests",
			Help:      "In-flight HTTP requests.",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latencies in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),

		operationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Total number of business operations.",
		}, []string{"domain", "operation", "status"}),
		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of business operations in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"domain", "operation", "status"}),
	}

	p.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		p.httpInFlight,
		p.httpRequestsTotal,
		p.httpRequestDuration,
		p.operationsTotal,
		p.operationDuration,
	)
	return p
}

// Registry is exposed for tests and for registering extra collectors.
func (p *Provider) Registry() *prometheus.Registry { return p.registry }

// Handler serves the registry in the Prometheus exposition format.
func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

func (p *Provider) RecordOperation(_ context.Context, domain, operation, status string) {
	p.operationsTotal.WithLabelValues(domain, operation, status).Inc()
}

func (p *Provider) RecordDuration(_ context.Context, domain, operation string, duration time.Duration, status string) {
	p.operationDuration.WithLabelValues(domain, operation, status).Observe(duration.Seconds())
}

// Instrument records count, latency and in-flight requests. The path label
// is the matched ServeMux pattern so ids in URLs do not explode cardinality.
func (p *Provider) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.httpInFlight.Inc()
		defer p.httpInFlight.Dec()

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		path := CanonicalPath(r)
		status := strconv.Itoa(sw.code)
		p.httpRequestDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
		p.httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
	})
}

// CanonicalPath returns the route pattern that served r, or "unknown" when
// nothing matched. ServeMux fills r.Pattern in place during routing.
func CanonicalPath(r *http.Request) string {
	if r.Pattern == "" {
		return "unknown"
	}
	return r.Pattern
}

type statusWriter struct {
	http.ResponseWriter
	code        int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.code = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// NoOp discards everything. Used when metrics are disabled.
type NoOp struct{}

func (NoOp) RecordOperation(context.Context, string, string, string)               {}
func (NoOp) RecordDuration(context.Context, string, string, time.Duration, string) {}
