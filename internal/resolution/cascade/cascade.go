// Package cascade resolves one supplied identity against the directory by
// trying progressively looser search strategies until one yields candidates.
package cascade

import (
	"cmp"
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"

	"npimatch/internal/directory"
	"npimatch/internal/resolution/metrics"
	"npimatch/internal/resolution/models"
	"npimatch/internal/resolution/similarity"
)

// Fetcher returns up to limit directory records for a query. Failures are
// reported as no records.
type Fetcher interface {
	Fetch(ctx context.Context, q directory.Query, limit int) []directory.Record
}

// Cascade runs the strategy cascade for single identities. It is safe for
// concurrent use.
type Cascade struct {
	fetcher Fetcher
	scorer  *similarity.Scorer
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Cascade.
type Option func(*Cascade)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cascade) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithScorer replaces the default-threshold scorer.
func WithScorer(scorer *similarity.Scorer) Option {
	return func(c *Cascade) {
		if scorer != nil {
			c.scorer = scorer
		}
	}
}

// WithMetrics sets the metrics sink. Nil disables metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cascade) {
		c.metrics = m
	}
}

// New validates cfg and builds a Cascade.
func New(fetcher Fetcher, cfg Config, opts ...Option) (*Cascade, error) {
	if fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	cfg = cfg.Normalized()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	scorer, err := similarity.NewScorer()
	if err != nil {
		return nil, err
	}
	c := &Cascade{
		fetcher: fetcher,
		scorer:  scorer,
		cfg:     cfg,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Config returns the normalized configuration in use.
func (c *Cascade) Config() Config {
	return c.cfg
}

// WithConfig returns a copy of c running under cfg. The receiver is unchanged.
func (c *Cascade) WithConfig(cfg Config) (*Cascade, error) {
	cfg = cfg.Normalized()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	clone := *c
	clone.cfg = cfg
	return &clone, nil
}

// Resolve runs the strategies in order up to the configured maximum
// strictness and returns the first non-empty candidate set.
func (c *Cascade) Resolve(ctx context.Context, identity models.SuppliedIdentity) models.Result {
	identity = identity.Trimmed()
	seen := newSeenSet()

	for _, level := range models.Strategies {
		if c.cfg.MaxStrictness.StricterThan(level) {
			break
		}
		var candidates []models.ScoredCandidate
		if level == models.MatchLevelBest {
			candidates = c.best(ctx, identity, seen)
		} else {
			candidates = c.lenient(ctx, identity, level, seen)
		}
		c.metrics.IncrementStrategyAttempt(level.String(), len(candidates) > 0)
		c.logger.DebugContext(ctx, "strategy evaluated",
			"row_id", identity.RowID,
			"strategy", level.String(),
			"candidates", len(candidates),
		)
		if len(candidates) > 0 {
			return models.Result{Identity: identity, Level: level, Candidates: candidates}
		}
	}
	return models.NoMatch(identity)
}

// best runs the exact-name strategy once per jurisdiction pass, stopping at
// the first pass that yields candidates.
func (c *Cascade) best(ctx context.Context, identity models.SuppliedIdentity, seen seenSet) []models.ScoredCandidate {
	for _, states := range c.cfg.bestPasses() {
		if candidates := c.bestPass(ctx, identity, states, seen); len(candidates) > 0 {
			return candidates
		}
	}
	return nil
}

func (c *Cascade) bestPass(ctx context.Context, identity models.SuppliedIdentity, states []string, seen seenSet) []models.ScoredCandidate {
	exact := c.exactMatches(identity, c.fetch(ctx, identity.FirstName, identity.LastName, states))
	accepted := requireSpecialty(identity, exact)

	if len(accepted) == 0 {
		if split, ok := identity.SplitFirstName(); ok {
			splitExact := c.exactMatches(split, c.fetch(ctx, split.FirstName, split.LastName, states))
			accepted = requireSpecialty(split, splitExact)
			if len(exact) == 0 {
				exact = splitExact
			}
		}
	}

	// Specialty is a secondary signal: exact names without it still count,
	// ranked by how close their specialty came.
	if len(accepted) == 0 && identity.HasSpecialty() {
		accepted = slices.Clone(exact)
		slices.SortStableFunc(accepted, func(a, b models.ScoredCandidate) int {
			return cmp.Compare(b.SpecialtyScore, a.SpecialtyScore)
		})
	}
	return c.finish(accepted, seen)
}

// exactMatches keeps records whose current or former name equals the
// supplied name.
func (c *Cascade) exactMatches(identity models.SuppliedIdentity, records []directory.Record) []models.ScoredCandidate {
	var out []models.ScoredCandidate
	for _, rec := range records {
		current := similarity.EqualName(rec.FirstName, identity.FirstName) &&
			similarity.EqualName(rec.LastName, identity.LastName)
		if !current && !similarity.FormerNameMatch(identity.FirstName, identity.LastName, rec.FormerNames) {
			continue
		}
		sc := c.score(identity, rec, models.MatchLevelBest)
		sc.NameScore = 100
		out = append(out, sc)
	}
	return out
}

func requireSpecialty(identity models.SuppliedIdentity, candidates []models.ScoredCandidate) []models.ScoredCandidate {
	if !identity.HasSpecialty() {
		return candidates
	}
	var out []models.ScoredCandidate
	for _, sc := range candidates {
		if sc.SpecialtyMatched {
			out = append(out, sc)
		}
	}
	return out
}

// lenient runs one of the partial-name strategies over every jurisdiction,
// ranking the pooled set by combined name and specialty score.
func (c *Cascade) lenient(ctx context.Context, identity models.SuppliedIdentity, level models.MatchLevel, seen seenSet) []models.ScoredCandidate {
	first, last := "", identity.LastName
	if level == models.MatchLevelLimitedPotential {
		first, last = identity.FirstName, ""
	}

	var scored []models.ScoredCandidate
	for _, rec := range c.fetch(ctx, first, last, c.cfg.orderedStates()) {
		if level == models.MatchLevelGood && !c.goodMatch(identity, rec) {
			continue
		}
		scored = append(scored, c.score(identity, rec, level))
	}
	slices.SortStableFunc(scored, func(a, b models.ScoredCandidate) int {
		return cmp.Compare(combinedScore(b), combinedScore(a))
	})
	return c.finish(scored, seen)
}

func (c *Cascade) goodMatch(identity models.SuppliedIdentity, rec directory.Record) bool {
	if !similarity.EqualName(rec.LastName, identity.LastName) {
		return false
	}
	return c.scorer.FirstNameMatches(identity.FirstName, rec.FirstName) ||
		similarity.FormerNameMatch(identity.FirstName, identity.LastName, rec.FormerNames)
}

func (c *Cascade) score(identity models.SuppliedIdentity, rec directory.Record, level models.MatchLevel) models.ScoredCandidate {
	specialty := c.scorer.SpecialtyScore(identity.Specialty, rec.Taxonomies)
	return models.ScoredCandidate{
		Candidate:        rec,
		Level:            level,
		NameScore:        c.scorer.NameScore(identity.FirstName, identity.LastName, rec),
		SpecialtyScore:   specialty,
		SpecialtyMatched: c.scorer.SpecialtyMatched(identity.Specialty, specialty),
	}
}

func combinedScore(sc models.ScoredCandidate) int {
	return (sc.NameScore + sc.SpecialtyScore) / 2
}

// finish dedupes, surfaces the preferred jurisdiction and applies the limit.
func (c *Cascade) finish(candidates []models.ScoredCandidate, seen seenSet) []models.ScoredCandidate {
	if len(candidates) == 0 {
		return nil
	}
	out := Prioritize(seen.Deduplicate(candidates), c.cfg.Preferred())
	if len(out) > c.cfg.Limit {
		out = out[:c.cfg.Limit]
	}
	return out
}

// fetch queries each jurisdiction separately and pools the records in order.
func (c *Cascade) fetch(ctx context.Context, first, last string, states []string) []directory.Record {
	if first == "" && last == "" {
		return nil
	}
	var pooled []directory.Record
	for _, state := range states {
		q := directory.Query{FirstName: first, LastName: last, State: state}
		pooled = append(pooled, c.fetcher.Fetch(ctx, q, c.cfg.fetchCap())...)
	}
	return pooled
}
