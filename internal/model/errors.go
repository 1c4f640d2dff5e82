package model

import "errors"

// Error kinds per spec §7. These are sentinel errors; call sites wrap them
// with fmt.Errorf("...: %w", ErrX) to attach context without losing the kind.
var (
	ErrValidation        = errors.New("validation error")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrUpstreamTransient = errors.New("upstream transient error")
	ErrUpstreamPermanent = errors.New("upstream permanent error")
	ErrDeadlineExceeded  = errors.New("deadline exceeded")
)
