// Package cache memoizes directory searches keyed by the (first, last, state)
// query triple. The cache is an optimization only: any store failure falls
// back to an uncached search.
package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"npimatch/internal/directory"
	"npimatch/pkg/platform/sentinel"
)

var lookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "npimatch_directory_cache_lookups_total",
	Help: "Directory cache lookups by result (hit, short, miss, error)",
}, []string{"result"})

// ErrNotFound is returned by stores when a key is absent or expired.
var ErrNotFound = sentinel.ErrNotFound

// Key identifies one cached query.
type Key struct {
	FirstName string
	LastName  string
	State     string
}

// KeyFor normalises a query into its cache key.
func KeyFor(q directory.Query) Key {
	return Key{
		FirstName: strings.ToLower(strings.TrimSpace(q.FirstName)),
		LastName:  strings.ToLower(strings.TrimSpace(q.LastName)),
		State:     strings.ToLower(strings.TrimSpace(q.State)),
	}
}

// String length-prefixes each field so distinct keys never render alike.
func (k Key) String() string {
	var b strings.Builder
	for i, field := range []string{k.FirstName, k.LastName, k.State} {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(strconv.Itoa(len(field)))
		b.WriteByte(':')
		b.WriteString(field)
	}
	return b.String()
}

// Entry is one cached search: the records and the cap they were fetched with.
type Entry struct {
	Records []directory.Record `json:"records"`
	Cap     int                `json:"cap"`
}

// serves reports whether the entry yields the same records an uncached
// search with limit would. A larger cap truncates; a smaller cap only
// serves when the directory ran out before reaching it.
func (e Entry) serves(q directory.Query, limit int) bool {
	if len(q.States()) > 1 {
		return e.Cap == limit
	}
	return e.Cap >= limit || len(e.Records) < e.Cap
}

// Store persists search results. Implementations must be safe for concurrent
// use; concurrent Saves for one key resolve last-writer-wins.
type Store interface {
	Find(ctx context.Context, key Key) (Entry, error)
	Save(ctx context.Context, key Key, entry Entry) error
}

// Searcher decorates a directory.Searcher with a Store.
type Searcher struct {
	next   directory.Searcher
	store  Store
	logger *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher)

// WithLogger sets the logger for store failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSearcher returns next unchanged when store is nil.
func NewSearcher(next directory.Searcher, store Store, opts ...Option) directory.Searcher {
	if store == nil {
		return next
	}
	s := &Searcher{
		next:   next,
		store:  store,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search serves from the store when the cached entry covers limit. An entry
// fetched with a smaller cap that filled it is a miss and gets replaced. Only
// successful searches are saved, so a transient failure is never memoized as
// an empty result.
func (s *Searcher) Search(ctx context.Context, q directory.Query, limit int) ([]directory.Record, error) {
	key := KeyFor(q)
	cached, err := s.store.Find(ctx, key)
	switch {
	case err == nil && cached.serves(q, limit):
		lookups.WithLabelValues("hit").Inc()
		records := cached.Records
		if len(records) > limit {
			records = records[:limit]
		}
		return records, nil
	case err == nil:
		lookups.WithLabelValues("short").Inc()
	case errors.Is(err, ErrNotFound):
		lookups.WithLabelValues("miss").Inc()
	default:
		lookups.WithLabelValues("error").Inc()
		s.logger.WarnContext(ctx, "directory cache read failed",
			"key", key.String(),
			"unavailable", errors.Is(err, sentinel.ErrUnavailable),
			"error", err,
		)
	}

	records, err := s.next.Search(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, key, Entry{Records: records, Cap: limit}); err != nil {
		s.logger.WarnContext(ctx, "directory cache write failed", "key", key.String(), "error", err)
	}
	return records, nil
}
