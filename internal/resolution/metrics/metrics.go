package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for identity resolution.
type Metrics struct {
	// Resolution outcomes by match level
	Outcomes *prometheus.CounterVec

	// Strategy attempts by strategy and whether they produced candidates
	StrategyAttempts *prometheus.CounterVec

	// Identities whose resolution faulted and was degraded to no match
	Failures prometheus.Counter

	// Per-identity resolution latency
	ResolveLatency prometheus.Histogram

	// Whole-batch latency and size
	BatchLatency prometheus.Histogram
	BatchSize    prometheus.Histogram
}

// New creates a Metrics instance with all resolution metrics registered.
func New() *Metrics {
	return &Metrics{
		Outcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "npimatch_resolution_outcomes_total",
			Help: "Resolved identities by match level",
		}, []string{"level"}),

		StrategyAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "npimatch_resolution_strategy_attempts_total",
			Help: "Strategy attempts by strategy and result",
		}, []string{"strategy", "result"}), // result: "hit", "miss"

		Failures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "npimatch_resolution_failures_total",
			Help: "Identities degraded to no match after a fault during resolution",
		}),

		ResolveLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "npimatch_resolution_identity_duration_seconds",
			Help:    "Duration of a single identity resolution including directory fetches",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),

		BatchLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "npimatch_resolution_batch_duration_seconds",
			Help:    "Duration of a full batch resolution",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 900},
		}),

		BatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "npimatch_resolution_batch_size",
			Help:    "Number of identities per batch",
			Buckets: []float64{1, 10, 50, 100, 500, 1000, 5000},
		}),
	}
}

// IncrementOutcome records the final match level of one identity.
func (m *Metrics) IncrementOutcome(level string) {
	if m != nil {
		m.Outcomes.WithLabelValues(level).Inc()
	}
}

// IncrementStrategyAttempt records whether a strategy produced candidates.
func (m *Metrics) IncrementStrategyAttempt(strategy string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.StrategyAttempts.WithLabelValues(strategy, result).Inc()
}

// IncrementFailure records a degraded identity.
func (m *Metrics) IncrementFailure() {
	if m != nil {
		m.Failures.Inc()
	}
}

// ObserveResolveLatency records one identity's resolution time.
func (m *Metrics) ObserveResolveLatency(d time.Duration) {
	if m != nil {
		m.ResolveLatency.Observe(d.Seconds())
	}
}

// ObserveBatch records a completed batch.
func (m *Metrics) ObserveBatch(size int, d time.Duration) {
	if m != nil {
		m.BatchSize.Observe(float64(size))
		m.BatchLatency.Observe(d.Seconds())
	}
}
