package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// location resolution pipeline.
type Metrics struct {
	ResolveCycles *prometheus.CounterVec // labels: outcome={success,failure}
	CycleDuration prometheus.Histogram
	LastFixTime   prometheus.Gauge // unix seconds of the last successful fix

	// Provider probe metrics.
	ProviderProbes *prometheus.CounterVec   // labels: provider, outcome={success,failure,skipped}
	ProbeDuration  *prometheus.HistogramVec // labels: provider

	// Cache metrics.
	CacheLookups *prometheus.CounterVec // labels: result={hit,miss,bypass}

	// Telemetry sink metrics.
	TelemetryPublished prometheus.Counter
	TelemetryErrors    prometheus.Counter

	HybridEnabled prometheus.Gauge
}

// NewMetrics creates and registers all resolver metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.ResolveCycles,
		m.CycleDuration,
		m.LastFixTime,
		m.ProviderProbes,
		m.ProbeDuration,
		m.CacheLookups,
		m.TelemetryPublished,
		m.TelemetryErrors,
		m.HybridEnabled,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		ResolveCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "whereami",
			Name:      "resolve_cycles_total",
			Help:      "Resolution cycles by outcome.",
		}, []string{"outcome"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "whereami",
			Name:      "resolve_cycle_duration_seconds",
			Help:      "Duration of a complete resolution cycle.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		LastFixTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "whereami",
			Name:      "last_fix_timestamp_seconds",
			Help:      "Unix time of the most recent successful location fix.",
		}),
		ProviderProbes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "whereami",
			Name:      "provider_probes_total",
			Help:      "Provider probe attempts by provider and outcome.",
		}, []string{"provider", "outcome"}),
		ProbeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "whereami",
			Name:      "provider_probe_duration_seconds",
			Help:      "Provider probe duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		}, []string{"provider"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "whereami",
			Name:      "cache_lookups_total",
			Help:      "Result cache lookups by result.",
		}, []string{"result"}),
		TelemetryPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "whereami",
			Name:      "telemetry_published_total",
			Help:      "Resolution outcomes published to the telemetry topic.",
		}),
		TelemetryErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "whereami",
			Name:      "telemetry_errors_total",
			Help:      "Failed telemetry publishes.",
		}),
		HybridEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "whereami",
			Name:      "hybrid_enabled",
			Help:      "1 when hybrid multi-provider selection is enabled.",
		}),
	}
}
