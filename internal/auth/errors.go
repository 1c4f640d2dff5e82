package auth

import "errors"

var (
	// ErrMissingToken is returned when no bearer credential is present on the request.
	ErrMissingToken = errors.New("bearer credential required")

	// ErrInvalidToken is returned when a credential's signature does not verify.
	ErrInvalidToken = errors.New("invalid bearer credential")

	// ErrTokenExpired is returned when a credential's expiry has passed.
	ErrTokenExpired = errors.New("bearer credential expired")

	// ErrForbiddenCaller is returned when a service credential's claimed
	// identity is not present in the configured allow-list.
	ErrForbiddenCaller = errors.New("caller not permitted for this operation")
)
