// Package metrics provides the process-wide Prometheus counters and
// histogram for the reverse proxy. Label cardinality is bounded only by
// callers choosing stable (status, method, path) tuples; high-cardinality
// paths degrade scrape performance but are not rejected.
package metrics

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// Registry holds a labeled request counter and a labeled latency
// histogram, both registered against a private prometheus.Registry rather
// than the global default so that concurrent tests and repeated
// construction never collide on metric names.
type Registry struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// durationBuckets are the fixed histogram buckets, in seconds.
var durationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0}

// New constructs a Registry with http_requests_total and
// http_request_duration_seconds registered and ready to record.
func New() *Registry {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests handled by the proxy, labeled by status, method, and path.",
	}, []string{"status", "method", "path"})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests handled by the proxy.",
		Buckets: durationBuckets,
	}, []string{"status", "method", "path"})

	reg := prometheus.NewRegistry()
	reg.MustRegister(requests, duration)

	return &Registry{registry: reg, requests: requests, duration: duration}
}

// Record increments the request counter and observes the latency histogram
// for one terminated request, using an identical label tuple for both.
// status 0 (client disconnected before any response was written) is
// recorded as the literal string "0".
func (r *Registry) Record(status int, method, path string, durationSeconds float64) {
	labels := prometheus.Labels{
		"status": strconv.Itoa(status),
		"method": method,
		"path":   path,
	}
	r.requests.With(labels).Inc()
	r.duration.With(labels).Observe(durationSeconds)
}

// Encode renders the accumulated counters and histogram in Prometheus text
// exposition format. It is the implementation behind the /metrics endpoint:
// callers write the returned bytes with the returned content type.
func (r *Registry) Encode() ([]byte, string, error) {
	families, err := r.registry.Gather()
	if err != nil {
		return nil, "", fmt.Errorf("metrics: gather: %w", err)
	}

	format := expfmt.NewFormat(expfmt.TypeTextPlain)
	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, format)
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return nil, "", fmt.Errorf("metrics: encode: %w", err)
		}
	}
	return buf.Bytes(), string(format), nil
}
