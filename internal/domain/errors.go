package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency. Callers match them
// with errors.Is after boundary code wraps them with context.

var (
	// Run lifecycle errors
	ErrRunNotFound       = errors.New("training run not found")
	ErrInvalidTransition = errors.New("invalid run state transition")
	ErrRunExists         = errors.New("training run already exists")

	// Validation errors
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrConfigIncomplete = errors.New("training config missing required fields")

	// Provider errors
	ErrNoAPIKey     = errors.New("provider API key not configured")
	ErrUnauthorized = errors.New("provider rejected credentials")
)
