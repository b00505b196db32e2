// Package metrics exposes Prometheus instrumentation for quoting.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the quoting path.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Quote outcomes by product and result code ("ok" or an error type)
	QuoteOutcome *prometheus.CounterVec

	// Engine latency by product
	QuoteLatency *prometheus.HistogramVec

	// Lookups that needed a wildcard entry, by product and number of open dimensions
	WildcardMatches *prometheus.CounterVec

	// Carrier comparison latency by source ("plan" or "adapter")
	CarrierLatency *prometheus.HistogramVec

	// Plan versions currently loaded
	PlansLoaded prometheus.Gauge

	// Snapshot cache hits and misses
	CacheRequests *prometheus.CounterVec
}

// New registers every metric with reg
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		QuoteOutcome: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rating_quotes_total",
			Help: "Total quotes by product type and outcome",
		}, []string{"product_type", "outcome"}),

		QuoteLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rating_quote_duration_seconds",
			Help:    "Duration of plan resolution and rating",
			Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05},
		}, []string{"product_type"}),

		WildcardMatches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rating_wildcard_matches_total",
			Help: "Base-rate lookups that matched a wildcard entry",
		}, []string{"product_type", "open_dimensions"}),

		CarrierLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rating_carrier_quote_duration_seconds",
			Help:    "Duration of one carrier's quote during a comparison",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"source"}),

		PlansLoaded: f.NewGauge(prometheus.GaugeOpts{
			Name: "rating_plans_loaded",
			Help: "Plan versions held by the repository",
		}),

		CacheRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rating_snapshot_cache_requests_total",
			Help: "Snapshot cache lookups by result",
		}, []string{"result"}),
	}
}

// IncrementOutcome records a quote outcome
func (m *Metrics) IncrementOutcome(productType, outcome string) {
	if m != nil {
		m.QuoteOutcome.WithLabelValues(productType, outcome).Inc()
	}
}

// ObserveQuoteLatency records the duration of one quote
func (m *Metrics) ObserveQuoteLatency(productType string, d time.Duration) {
	if m != nil {
		m.QuoteLatency.WithLabelValues(productType).Observe(d.Seconds())
	}
}

// IncrementWildcard records a wildcard match
func (m *Metrics) IncrementWildcard(productType string, open int) {
	if m != nil && open > 0 {
		m.WildcardMatches.WithLabelValues(productType, itoa(open)).Inc()
	}
}

// ObserveCarrierLatency records one carrier's share of a comparison
func (m *Metrics) ObserveCarrierLatency(source string, d time.Duration) {
	if m != nil {
		m.CarrierLatency.WithLabelValues(source).Observe(d.Seconds())
	}
}

// SetPlansLoaded records the repository size
func (m *Metrics) SetPlansLoaded(n int) {
	if m != nil {
		m.PlansLoaded.Set(float64(n))
	}
}

// IncrementCache records a cache hit or miss
func (m *Metrics) IncrementCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheRequests.WithLabelValues("hit").Inc()
	} else {
		m.CacheRequests.WithLabelValues("miss").Inc()
	}
}

func itoa(n int) string {
	if n >= 0 && n < 10 {
		return string(rune('0' + n))
	}
	return "10+"
}
