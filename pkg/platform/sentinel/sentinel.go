package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and clients return these
// (optionally wrapped) so callers can decide how to degrade.
//
// - ErrNotFound: key absent or expired in a cache store
// - ErrUnavailable: backing service temporarily unavailable
// - ErrInvalidState: component used before it was configured
var (
	ErrNotFound     = errors.New("not found")
	ErrUnavailable  = errors.New("unavailable")
	ErrInvalidState = errors.New("invalid state")
)
