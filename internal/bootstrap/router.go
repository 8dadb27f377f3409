package bootstrap

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"npimatch/internal/platform/config"
	platformmetrics "npimatch/internal/platform/metrics"
	"npimatch/internal/platform/middleware"
	"npimatch/internal/ratelimit"
	"npimatch/internal/resolution/handler"
	"npimatch/pkg/platform/httputil"
)

// Router mounts the resolve API behind the per-client rate limit, plus the
// health and metrics endpoints. m may be nil.
func (r *Resolver) Router(cfg config.Server, limits *ratelimit.Store, m *platformmetrics.Metrics) chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recovery(r.logger, m))
	router.Use(middleware.Logger(r.logger, m))

	limiter := ratelimit.New(limits, cfg.RateLimit, cfg.RateLimitWindow, r.logger)
	router.Group(func(api chi.Router) {
		api.Use(limiter.Middleware)
		handler.New(r.Service, r.logger).Register(api)
	})

	router.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := r.Health(req.Context()); err != nil {
			r.logger.WarnContext(req.Context(), "health check failed", "error", err)
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	router.Handle("/metrics", promhttp.Handler())
	return router
}
