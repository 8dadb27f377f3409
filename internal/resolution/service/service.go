// Package service binds the strategy cascade and the batch pipeline so callers
// can resolve a batch under per-call configuration.
package service

import (
	"context"
	"errors"

	"npimatch/internal/resolution/batch"
	"npimatch/internal/resolution/cascade"
	"npimatch/internal/resolution/models"
)

// Service resolves batches with the base cascade or a reconfigured copy.
type Service struct {
	cascade  *cascade.Cascade
	pipeline []batch.Option
}

// New wraps a configured cascade. Pipeline options apply to every batch.
func New(c *cascade.Cascade, opts ...batch.Option) (*Service, error) {
	if c == nil {
		return nil, errors.New("cascade is required")
	}
	if _, err := batch.New(c, opts...); err != nil {
		return nil, err
	}
	return &Service{cascade: c, pipeline: opts}, nil
}

// Defaults returns the base resolution configuration.
func (s *Service) Defaults() cascade.Config {
	return s.cascade.Config()
}

// Resolve validates cfg and runs the batch. Configuration errors are
// returned before any identity is resolved.
func (s *Service) Resolve(ctx context.Context, identities []models.SuppliedIdentity, cfg cascade.Config) (batch.Batch, error) {
	c, err := s.cascade.WithConfig(cfg)
	if err != nil {
		return batch.Batch{}, err
	}
	p, err := batch.New(c, s.pipeline...)
	if err != nil {
		return batch.Batch{}, err
	}
	return p.Run(ctx, identities), nil
}
