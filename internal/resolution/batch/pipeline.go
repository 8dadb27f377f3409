// Package batch resolves many identities concurrently with a fixed pool of
// workers, returning results in input order.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"npimatch/internal/resolution/metrics"
	"npimatch/internal/resolution/models"
	dErrors "npimatch/pkg/domain-errors"
)

// DefaultConcurrency is the worker count when none is configured.
const DefaultConcurrency = 8

const tracerName = "npimatch/internal/resolution/batch"

// Resolver resolves a single identity. Implementations must be safe for
// concurrent use.
type Resolver interface {
	Resolve(ctx context.Context, identity models.SuppliedIdentity) models.Result
}

// Batch is the outcome of one pipeline run.
type Batch struct {
	ID       string
	Results  []models.Result
	Duration time.Duration
}

// Pipeline fans identities out to a bounded worker pool.
type Pipeline struct {
	resolver Resolver
	workers  int
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithConcurrency sets the worker count.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		p.workers = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink. Nil disables metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(p *Pipeline) {
		if tp != nil {
			p.tracer = tp.Tracer(tracerName)
		}
	}
}

// New builds a Pipeline around resolver.
func New(resolver Resolver, opts ...Option) (*Pipeline, error) {
	if resolver == nil {
		return nil, errors.New("resolver is required")
	}
	p := &Pipeline{
		resolver: resolver,
		workers:  DefaultConcurrency,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.workers <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("concurrency must be positive, got %d", p.workers))
	}
	return p, nil
}

// ResolveAll returns one result per identity at the same index.
func (p *Pipeline) ResolveAll(ctx context.Context, identities []models.SuppliedIdentity) []models.Result {
	return p.Run(ctx, identities).Results
}

// Run resolves identities and reports the batch id and duration alongside
// the results. Faults in one identity never affect another. If ctx ends
// before every identity is dispatched, the rest degrade to no match.
func (p *Pipeline) Run(ctx context.Context, identities []models.SuppliedIdentity) Batch {
	batch := Batch{ID: uuid.NewString(), Results: make([]models.Result, len(identities))}
	start := time.Now()
	logger := p.logger.With("batch_id", batch.ID)
	logger.InfoContext(ctx, "batch started", "identities", len(identities), "workers", p.workers)

	indices := make(chan int)
	var g errgroup.Group
	for range min(p.workers, len(identities)) {
		g.Go(func() error {
			for i := range indices {
				batch.Results[i] = p.resolveOne(ctx, identities[i])
			}
			return ctx.Err()
		})
	}

	dispatched := 0
dispatch:
	for dispatched < len(identities) {
		select {
		case indices <- dispatched:
			dispatched++
		case <-ctx.Done():
			break dispatch
		}
	}
	close(indices)
	if err := g.Wait(); err != nil {
		logger.WarnContext(ctx, "batch cancelled",
			"dispatched", dispatched,
			"identities", len(identities),
			"error", err,
		)
	}

	for i := dispatched; i < len(identities); i++ {
		batch.Results[i] = models.NoMatch(identities[i].Trimmed())
		batch.Results[i].Err = ctx.Err()
	}

	batch.Duration = time.Since(start)
	p.metrics.ObserveBatch(len(identities), batch.Duration)
	logger.InfoContext(ctx, "batch completed",
		"identities", len(identities),
		"duration", batch.Duration,
		"levels", levelCounts(batch.Results),
		"skipped", len(identities)-dispatched,
	)
	return batch
}

func (p *Pipeline) resolveOne(ctx context.Context, identity models.SuppliedIdentity) (result models.Result) {
	ctx, span := p.tracer.Start(ctx, "resolve_identity",
		trace.WithAttributes(attribute.String("row_id", identity.RowID)),
	)
	defer span.End()
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("resolving row %q: panic: %v", identity.RowID, r)
			p.metrics.IncrementFailure()
			p.logger.ErrorContext(ctx, "identity resolution failed, degrading to no match",
				"row_id", identity.RowID,
				"error", err,
				"stack", string(debug.Stack()),
			)
			span.RecordError(err)
			span.SetStatus(codes.Error, "resolution panicked")
			result = models.NoMatch(identity.Trimmed())
			result.Err = err
		}
		p.metrics.ObserveResolveLatency(time.Since(start))
		p.metrics.IncrementOutcome(result.Level.String())
		span.SetAttributes(
			attribute.String("match_level", result.Level.String()),
			attribute.Int("candidates", len(result.Candidates)),
		)
	}()

	return p.resolver.Resolve(ctx, identity)
}

func levelCounts(results []models.Result) map[string]int {
	counts := make(map[string]int)
	for _, r := range results {
		counts[r.Level.String()]++
	}
	return counts
}
