package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"npimatch/internal/bootstrap"
	"npimatch/internal/platform/config"
	"npimatch/internal/platform/httpserver"
	"npimatch/internal/platform/logger"
	platformmetrics "npimatch/internal/platform/metrics"
	"npimatch/internal/ratelimit"
	"npimatch/internal/resolution/metrics"
)

const janitorInterval = time.Minute

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(os.Stdout, cfg.LogLevel, logger.FormatJSON)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	resolver, err := bootstrap.New(ctx, cfg, log, metrics.New())
	if err != nil {
		log.Error("failed to build resolver", "error", err)
		os.Exit(1)
	}
	defer resolver.Close()
	go resolver.RunJanitor(ctx, janitorInterval)

	limits := ratelimit.NewStore()
	go purgeRateLimits(ctx, limits, janitorInterval)
	router := resolver.Router(cfg.Server, limits, platformmetrics.New())

	srv := httpserver.New(cfg.Server.Addr, otelhttp.NewHandler(router, "npimatch"))
	log.Info("starting npimatch",
		"addr", cfg.Server.Addr,
		"directory", cfg.Directory.URL,
		"cache", cfg.Cache.Backend,
		"concurrency", cfg.Resolution.Concurrency,
		"rate_limit", cfg.Server.RateLimit,
	)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	log.Info("npimatch stopped")
}

func purgeRateLimits(ctx context.Context, store *ratelimit.Store, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			store.Purge()
		}
	}
}
