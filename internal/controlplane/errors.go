package controlplane

import "errors"

// Sentinel errors for control plane operations.
var (
	ErrInvalidRequest     = errors.New("invalid request")
	ErrNotFound           = errors.New("audit not found")
	ErrScoringUnavailable = errors.New("scoring service not configured")
)
