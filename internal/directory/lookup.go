package directory

import (
	"context"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"npimatch/pkg/platform/circuit"
)

var fetchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "npimatch_directory_fetch_failures_total",
	Help: "Directory fetches degraded to zero candidates, by failure category",
}, []string{"category"})

// Lookup is the fetch boundary used by resolution. It never fails: transport
// and decoding errors are logged and reported as zero candidates, so an outage
// is indistinguishable from a true empty result downstream.
type Lookup struct {
	searcher Searcher
	logger   *slog.Logger
	breaker  *circuit.Breaker
}

// LookupOption configures a Lookup.
type LookupOption func(*Lookup)

// WithLogger sets the logger used for swallowed failures.
func WithLogger(logger *slog.Logger) LookupOption {
	return func(l *Lookup) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithBreaker short-circuits fetches to zero candidates while the registry is
// failing. Only retryable failures count against the breaker.
func WithBreaker(b *circuit.Breaker) LookupOption {
	return func(l *Lookup) {
		l.breaker = b
	}
}

// NewLookup wraps a Searcher with the error-swallowing fetch boundary.
func NewLookup(searcher Searcher, opts ...LookupOption) *Lookup {
	l := &Lookup{
		searcher: searcher,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Fetch returns up to limit records for q, or nil on any failure.
func (l *Lookup) Fetch(ctx context.Context, q Query, limit int) []Record {
	if l.breaker != nil && !l.breaker.Allow() {
		fetchFailures.WithLabelValues(categoryCircuitOpen).Inc()
		return nil
	}
	records, err := l.searcher.Search(ctx, q, limit)
	l.record(ctx, err)
	if err != nil {
		category := GetCategory(err)
		fetchFailures.WithLabelValues(string(category)).Inc()
		l.logger.WarnContext(ctx, "directory fetch failed, treating as no candidates",
			"first_name", q.FirstName,
			"last_name", q.LastName,
			"state", q.State,
			"category", category,
			"retryable", IsRetryable(err),
			"error", err,
		)
		return nil
	}
	return records
}

const categoryCircuitOpen = "circuit_open"

func (l *Lookup) record(ctx context.Context, err error) {
	if l.breaker == nil {
		return
	}
	var change circuit.StateChange
	switch {
	case err == nil:
		_, change = l.breaker.RecordSuccess()
	case IsRetryable(err):
		_, change = l.breaker.RecordFailure()
	default:
		return
	}
	if change.Opened {
		l.logger.WarnContext(ctx, "directory circuit opened, fetches return no candidates until it recovers",
			"breaker", l.breaker.Name())
	}
	if change.Closed {
		l.logger.InfoContext(ctx, "directory circuit closed", "breaker", l.breaker.Name())
	}
}
