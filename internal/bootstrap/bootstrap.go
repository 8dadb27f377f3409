// Package bootstrap assembles the resolution stack from configuration for
// the server and the CLI.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"npimatch/internal/directory"
	"npimatch/internal/directory/cache"
	"npimatch/internal/platform/config"
	platformredis "npimatch/internal/platform/redis"
	"npimatch/internal/resolution/batch"
	"npimatch/internal/resolution/cascade"
	"npimatch/internal/resolution/metrics"
	"npimatch/internal/resolution/service"
	"npimatch/pkg/platform/circuit"
)

// Resolver owns the assembled service and the resources behind it.
type Resolver struct {
	Service *service.Service

	memory *cache.InMemoryStore
	redis  *platformredis.Client
	logger *slog.Logger
}

// New validates cfg and wires directory client, cache, cascade and pipeline.
// m may be nil.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, m *metrics.Metrics) (*Resolver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cascadeCfg, err := cfg.Resolution.CascadeConfig()
	if err != nil {
		return nil, err
	}

	r := &Resolver{logger: logger}
	var searcher directory.Searcher = directory.NewClient(cfg.Directory.URL, cfg.Directory.Timeout,
		directory.WithPageSize(cfg.Directory.PageSize),
	)

	switch cfg.Cache.Backend {
	case config.CacheMemory:
		r.memory = cache.NewInMemoryStore(cfg.Cache.TTL)
		searcher = cache.NewSearcher(searcher, r.memory, cache.WithLogger(logger))
	case config.CacheRedis:
		r.redis, err = platformredis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("connect redis cache: %w", err)
		}
		store, err := cache.NewRedisStore(r.redis.Client, cfg.Cache.TTL)
		if err != nil {
			_ = r.Close()
			return nil, err
		}
		searcher = cache.NewSearcher(searcher, store, cache.WithLogger(logger))
	}

	lookupOpts := []directory.LookupOption{directory.WithLogger(logger)}
	if cfg.Directory.BreakerThreshold > 0 {
		lookupOpts = append(lookupOpts, directory.WithBreaker(circuit.New("directory",
			circuit.WithFailureThreshold(cfg.Directory.BreakerThreshold),
			circuit.WithCooldown(cfg.Directory.BreakerCooldown),
		)))
	}
	lookup := directory.NewLookup(searcher, lookupOpts...)
	c, err := cascade.New(lookup, cascadeCfg, cascade.WithLogger(logger), cascade.WithMetrics(m))
	if err != nil {
		_ = r.Close()
		return nil, err
	}
	r.Service, err = service.New(c,
		batch.WithConcurrency(cfg.Resolution.Concurrency),
		batch.WithLogger(logger),
		batch.WithMetrics(m),
	)
	if err != nil {
		_ = r.Close()
		return nil, err
	}
	return r, nil
}

// Health reports the cache backend's health. Backends without a connection
// are always healthy.
func (r *Resolver) Health(ctx context.Context) error {
	if r.redis == nil {
		return nil
	}
	return r.redis.Health(ctx)
}

// RunJanitor purges expired in-memory cache entries every interval until ctx
// ends. It returns immediately for other backends.
func (r *Resolver) RunJanitor(ctx context.Context, interval time.Duration) {
	if r.memory == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.memory.Purge(); n > 0 {
				r.logger.DebugContext(ctx, "purged expired cache entries", "entries", n)
			}
		}
	}
}

// Close releases the cache connection, if any.
func (r *Resolver) Close() error {
	if r.redis == nil {
		return nil
	}
	return r.redis.Close()
}
