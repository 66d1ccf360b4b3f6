// Package metrics exposes Prometheus instrumentation for the HTTP surface and
// the composite pipeline.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// OutcomeSuccess labels composite runs that produced an artifact. Failed runs
// are labelled with their error kind.
const OutcomeSuccess = "success"

// Collector owns every metric the service exports.
type Collector struct {
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	compositesTotal   *prometheus.CounterVec
	compositeDuration *prometheus.HistogramVec

	upstreamCallsTotal   *prometheus.CounterVec
	upstreamCallDuration *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// NewCollector registers the metrics on reg. A nil reg uses a fresh private
// registry so tests and multiple instances never collide.
func NewCollector(namespace string, reg *prometheus.Registry) *Collector {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	c := &Collector{gatherer: reg}

	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	c.compositesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "composites_total",
			Help:      "Composite runs by outcome",
		},
		[]string{"model", "outcome"},
	)

	c.compositeDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "composite_duration_seconds",
			Help:      "End-to-end composite run duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120, 180},
		},
		[]string{"model"},
	)

	c.upstreamCallsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_calls_total",
			Help:      "Generation API calls by response status",
		},
		[]string{"model", "status"},
	)

	c.upstreamCallDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_call_duration_seconds",
			Help:      "Generation API call duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120, 180},
		},
		[]string{"model"},
	)

	return c
}

// RecordHTTPRequest records one served request.
func (c *Collector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if c == nil {
		return
	}
	c.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordComposite records a finished composite run.
func (c *Collector) RecordComposite(model, outcome string, duration time.Duration) {
	if c == nil {
		return
	}
	c.compositesTotal.WithLabelValues(model, outcome).Inc()
	c.compositeDuration.WithLabelValues(model).Observe(duration.Seconds())
}

// RecordUpstreamCall records one generation API call. status is the HTTP
// status code, or "transport_error" when no response arrived.
func (c *Collector) RecordUpstreamCall(model, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.upstreamCallsTotal.WithLabelValues(model, status).Inc()
	c.upstreamCallDuration.WithLabelValues(model).Observe(duration.Seconds())
}

// Handler serves the Prometheus exposition for this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
