// Package metrics exposes Prometheus instrumentation for the replication
// service on a dedicated listen address.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes all service metrics. Kept separate from the service
// name because Prometheus identifiers cannot contain dashes.
const Namespace = "object_replicator"

// ReplicationMetrics tracks terminal replication outcomes.
type ReplicationMetrics struct {
	// Replications counts replicate calls by terminal outcome:
	// replicated, not_found, invalid_request, exhausted.
	Replications *prometheus.CounterVec

	// BytesTransferred totals the bytes of successfully replicated objects.
	BytesTransferred prometheus.Counter

	// Attempts observes how many attempts each replicate call used.
	Attempts prometheus.Histogram
}

// NewReplicationMetrics registers the replication collectors on the given
// registerer.
func NewReplicationMetrics(namespace string, reg prometheus.Registerer) *ReplicationMetrics {
	m := &ReplicationMetrics{
		Replications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replications_total",
			Help:      "Replicate calls by terminal outcome.",
		}, []string{"outcome"}),
		BytesTransferred: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replicated_bytes_total",
			Help:      "Total bytes of successfully replicated objects.",
		}),
		Attempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "replication_attempts",
			Help:      "Attempts used per replicate call.",
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
		}),
	}

	reg.MustRegister(m.Replications, m.BytesTransferred, m.Attempts)
	return m
}

// MetricsServer serves the Prometheus scrape endpoint.
type MetricsServer struct {
	registry *prometheus.Registry
	srv      *http.Server
}

// New creates a metrics server with a fresh registry preloaded with the
// standard process and Go collectors.
func New(namespace, listenAddr string) (*MetricsServer, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: namespace}),
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return &MetricsServer{
		registry: registry,
		srv: &http.Server{
			Addr:    listenAddr,
			Handler: mux,
		},
	}, nil
}

// Registry returns the registerer for service collectors.
func (m *MetricsServer) Registry() prometheus.Registerer {
	return m.registry
}

// ListenAndServe blocks serving the scrape endpoint.
func (m *MetricsServer) ListenAndServe() error {
	return m.srv.ListenAndServe()
}

// Shutdown gracefully stops the scrape endpoint.
func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}
