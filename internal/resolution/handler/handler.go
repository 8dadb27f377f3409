package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"npimatch/internal/resolution/batch"
	"npimatch/internal/resolution/cascade"
	"npimatch/internal/resolution/models"
	"npimatch/pkg/platform/httputil"
	"npimatch/pkg/requestcontext"
)

// Service defines the interface for batch resolution.
type Service interface {
	Resolve(ctx context.Context, identities []models.SuppliedIdentity, cfg cascade.Config) (batch.Batch, error)
	Defaults() cascade.Config
}

// Handler wires resolution endpoints to the resolution service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a resolution handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts resolution endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/resolve", h.HandleResolve)
}

// HandleResolve handles POST /v1/resolve requests.
func (h *Handler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[ResolveRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	cfg := req.Config(h.service.Defaults())
	result, err := h.service.Resolve(ctx, req.ParsedIdentities(), cfg)
	if err != nil {
		h.logger.WarnContext(ctx, "batch resolution rejected",
			"request_id", requestID,
			"identities", len(req.Identities),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "batch resolved",
		"request_id", requestID,
		"batch_id", result.ID,
		"identities", len(result.Results),
		"duration_ms", result.Duration.Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromBatch(result))
}
