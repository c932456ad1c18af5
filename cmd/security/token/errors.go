package token

import "errors"

// Public, stable errors for callers.
var (
	ErrMalformed = errors.New("malformed credential")
	ErrEntropy   = errors.New("credential entropy unavailable")
)
