// Package metrics provides Prometheus collectors for the service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "backtester"

// Metrics holds all collectors. A nil *Metrics records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Analysis metrics
	AnalysesTotal    *prometheus.CounterVec
	AnalysisDuration prometheus.Histogram
	CandlesFetched   prometheus.Counter
	TradesSimulated  prometheus.Counter

	// Market data metrics
	UpstreamRequests *prometheus.CounterVec
	CacheLookups     *prometheus.CounterVec
	TicksReceived    prometheus.Counter
}

// New registers all collectors on reg. reg must also be a Gatherer for
// Handler to expose them; a *prometheus.Registry is both.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		gatherer: reg,

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),

		AnalysesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "runs_total",
			Help:      "Total number of strategy analyses by outcome",
		}, []string{"status"}),
		AnalysisDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "duration_seconds",
			Help:      "End-to-end analysis duration including data fetch",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		CandlesFetched: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "candles_fetched_total",
			Help:      "Total number of candles fed to the simulator",
		}),
		TradesSimulated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "trades_simulated_total",
			Help:      "Total number of ledger entries produced by simulations",
		}),

		UpstreamRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "binance",
			Name:      "requests_total",
			Help:      "Total number of Binance REST requests by endpoint and outcome",
		}, []string{"endpoint", "outcome"}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Candle cache lookups by result",
		}, []string{"result"}),
		TicksReceived: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "binance",
			Name:      "ticks_received_total",
			Help:      "Total number of mini-ticker updates received from the stream",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, status).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(seconds)
}

// ObserveAnalysis records one analysis run.
func (m *Metrics) ObserveAnalysis(status string, seconds float64, candles, trades int) {
	if m == nil {
		return
	}
	m.AnalysesTotal.WithLabelValues(status).Inc()
	m.AnalysisDuration.Observe(seconds)
	m.CandlesFetched.Add(float64(candles))
	m.TradesSimulated.Add(float64(trades))
}

// RecordUpstream records one Binance REST call.
func (m *Metrics) RecordUpstream(endpoint string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.UpstreamRequests.WithLabelValues(endpoint, outcome).Inc()
}

// RecordCacheLookup records a candle cache hit or miss.
func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// RecordTick counts one streamed ticker update.
func (m *Metrics) RecordTick() {
	if m == nil {
		return
	}
	m.TicksReceived.Inc()
}
