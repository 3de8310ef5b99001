// Package metrics exposes Prometheus collectors for the bridge and the paginator.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for FuturesTotal.
const (
	OutcomeResolved = "resolved"
	OutcomeFailed   = "failed"
	OutcomeIgnored  = "ignored" // completion arrived after the future was cancelled
)

// Collector groups the collectors registered on one registry.
// A nil *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	FuturesTotal    *prometheus.CounterVec
	PagesDelivered  prometheus.Counter
	PagesDiscarded  prometheus.Counter
	RowsBuffered    prometheus.Counter
	InflightFetches prometheus.Gauge
	OffloadSeconds  *prometheus.HistogramVec
}

// New registers a fresh set of collectors on their own registry.
func New() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		FuturesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aiodb_bridged_futures_total",
				Help: "Bridged query futures by how their driver completion was applied",
			},
			[]string{"outcome"},
		),
		PagesDelivered: factory.NewCounter(prometheus.CounterOpts{
			Name: "aiodb_pages_delivered_total",
			Help: "Pages accepted into a paginator buffer",
		}),
		PagesDiscarded: factory.NewCounter(prometheus.CounterOpts{
			Name: "aiodb_pages_discarded_total",
			Help: "Pages dropped because their paginator was already closed",
		}),
		RowsBuffered: factory.NewCounter(prometheus.CounterOpts{
			Name: "aiodb_rows_buffered_total",
			Help: "Rows appended to paginator buffers",
		}),
		InflightFetches: factory.NewGauge(prometheus.GaugeOpts{
			Name: "aiodb_inflight_page_fetches",
			Help: "Background next-page fetches not yet completed",
		}),
		OffloadSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "aiodb_offload_duration_seconds",
				Help:    "Latency of blocking driver calls run on the worker pool",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"call"},
		),
	}
}

// Handler serves the collectors in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry returns the registry the collectors live on.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Future records how a driver completion was applied to a bridged future.
func (c *Collector) Future(outcome string) {
	if c == nil {
		return
	}
	c.FuturesTotal.WithLabelValues(outcome).Inc()
}

// PageDelivered records an accepted page of n rows.
func (c *Collector) PageDelivered(n int) {
	if c == nil {
		return
	}
	c.PagesDelivered.Inc()
	c.RowsBuffered.Add(float64(n))
}

// PageDiscarded records a page dropped after scope exit.
func (c *Collector) PageDiscarded() {
	if c == nil {
		return
	}
	c.PagesDiscarded.Inc()
}

// FetchStarted records a next-page fetch handed to the worker pool.
func (c *Collector) FetchStarted() {
	if c == nil {
		return
	}
	c.InflightFetches.Inc()
}

// FetchDone records that a next-page fetch has returned.
func (c *Collector) FetchDone() {
	if c == nil {
		return
	}
	c.InflightFetches.Dec()
}

// Offload observes the duration of a blocking call.
func (c *Collector) Offload(call string, seconds float64) {
	if c == nil {
		return
	}
	c.OffloadSeconds.WithLabelValues(call).Observe(seconds)
}
