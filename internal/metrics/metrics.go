// Package metrics exposes Prometheus metrics for resolutions, ingestion and
// the HTTP surface on a private registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "emissions"

// Metrics holds the service collectors. It implements the kb and resolve
// recorder interfaces.
type Metrics struct {
	registry *prometheus.Registry

	resolutions  *prometheus.CounterVec
	ingests      *prometheus.CounterVec
	ingestedRows *prometheus.GaugeVec
	httpDuration *prometheus.HistogramVec
	snapshotSize prometheus.Gauge
}

// New creates a Metrics with process and Go runtime collectors registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: namespace}),
		collectors.NewGoCollector(),
	)

	m := &Metrics{
		registry: reg,
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Factor resolutions by tier (local, ai, none).",
		}, []string{"tier"}),
		ingests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_total",
			Help:      "Category ingestion outcomes (fresh, cache, skipped).",
		}, []string{"category", "outcome"}),
		ingestedRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ingested_rows",
			Help:      "Rows ingested for each category in the latest refresh.",
		}, []string{"category"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 20},
		}, []string{"method", "route", "status"}),
		snapshotSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_entries",
			Help:      "Entries in the knowledge base snapshot being served.",
		}),
	}
	reg.MustRegister(m.resolutions, m.ingests, m.ingestedRows, m.httpDuration, m.snapshotSize)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveResolution counts a resolution by tier.
func (m *Metrics) ObserveResolution(tier string) {
	m.resolutions.WithLabelValues(tier).Inc()
}

// ObserveIngest counts a category ingestion outcome and records its row count.
func (m *Metrics) ObserveIngest(category, outcome string, rows int) {
	m.ingests.WithLabelValues(category, outcome).Inc()
	m.ingestedRows.WithLabelValues(category).Set(float64(rows))
}

// SetSnapshotEntries records the size of the published snapshot.
func (m *Metrics) SetSnapshotEntries(n int) {
	m.snapshotSize.Set(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request latency labelled by the matched chi route.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpDuration.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}
