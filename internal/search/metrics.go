package search

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricRankDuration = "legvotes_search_rank_duration_seconds"
	MetricCandidates   = "legvotes_search_candidates_total"
	MetricMatches      = "legvotes_search_matches_total"
)

// Metrics contains Prometheus metrics for option ranking.
// All operations are thread-safe.
type Metrics struct {
	rankDuration *prometheus.HistogramVec
	candidates   *prometheus.CounterVec
	matches      *prometheus.CounterVec
}

// NewMetrics creates and returns a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		rankDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricRankDuration,
				Help:    "Time spent ranking options for a single query",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
			},
			[]string{"kind"},
		),
		candidates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricCandidates,
				Help: "Total number of options offered to the matcher",
			},
			[]string{"kind"},
		),
		matches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricMatches,
				Help: "Total number of options the matcher accepted",
			},
			[]string{"kind"},
		),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveRank records one ranking pass.
// kind: the option catalog searched (e.g., "legislators", "bills")
func (m *Metrics) ObserveRank(kind string, candidates, matched int, seconds float64) {
	m.rankDuration.WithLabelValues(kind).Observe(seconds)
	m.candidates.WithLabelValues(kind).Add(float64(candidates))
	m.matches.WithLabelValues(kind).Add(float64(matched))
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.rankDuration,
		m.candidates,
		m.matches,
	}
}
