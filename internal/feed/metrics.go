package feed

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus instruments for feed fetches, labelled by
// feed name ("status" or "notifications").
type Metrics struct {
	FetchSeconds     *prometheus.HistogramVec
	FetchBytesTotal  *prometheus.CounterVec
	FetchErrorsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers the feed instruments on the given
// registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		FetchSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "buswatch_fetch_seconds",
				Help:    "Duration of upstream feed fetches",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"feed"},
		),
		FetchBytesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "buswatch_fetch_bytes_total",
				Help: "Bytes downloaded per feed",
			},
			[]string{"feed"},
		),
		FetchErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "buswatch_fetch_errors_total",
				Help: "Failed fetches per feed (transport, non-2xx, or bad JSON)",
			},
			[]string{"feed"},
		),
	}

	registry.MustRegister(
		m.FetchSeconds,
		m.FetchBytesTotal,
		m.FetchErrorsTotal,
	)

	return m
}

// observe records one completed fetch. A nil *Metrics is a no-op so the
// client works without telemetry wired in (e.g. in tests).
func (m *Metrics) observe(feedName string, seconds float64, bytes int, failed bool) {
	if m == nil {
		return
	}
	m.FetchSeconds.WithLabelValues(feedName).Observe(seconds)
	m.FetchBytesTotal.WithLabelValues(feedName).Add(float64(bytes))
	if failed {
		m.FetchErrorsTotal.WithLabelValues(feedName).Inc()
	}
}
