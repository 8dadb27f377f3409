package handler

import (
	"npimatch/internal/resolution/batch"
	"npimatch/internal/resolution/report"
)

// ResolveResponse is the HTTP response for POST /v1/resolve.
type ResolveResponse struct {
	BatchID    string         `json:"batch_id"`
	Rows       []report.Row   `json:"rows"`
	Summary    report.Summary `json:"summary"`
	DurationMS int64          `json:"duration_ms"`
}

// FromBatch converts a completed batch to an HTTP response.
func FromBatch(b batch.Batch) *ResolveResponse {
	return &ResolveResponse{
		BatchID:    b.ID,
		Rows:       report.Rows(b.Results),
		Summary:    report.Summarize(b.Results),
		DurationMS: b.Duration.Milliseconds(),
	}
}
