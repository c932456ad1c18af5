package session

import "errors"

var (
	// ErrInvalidSignature is returned when an access credential fails verification:
	// bad signature, wrong algorithm, expired, or malformed.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrUnauthorized is returned when a session credential is missing, stale, or
	// does not belong to a known principal.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrConfig is returned for invalid configuration or key material.
	ErrConfig = errors.New("invalid config")
)
