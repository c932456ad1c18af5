package cache

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreUnavailable means the backing store could not serve the request.
	// Callers must fail closed and report it as a server-side error.
	ErrStoreUnavailable = errors.New("credential store unavailable")

	// ErrNotFound is returned by SetExpiration when no live value exists.
	ErrNotFound = errors.New("credential not found")

	ErrInvalidKind = errors.New("invalid credential kind")
	ErrInvalidTTL  = errors.New("ttl must be positive")
	ErrConfig      = errors.New("invalid cache config")
)

// StoreError wraps a backend failure. It matches ErrStoreUnavailable with errors.Is
// and unwraps to the backend cause.
type StoreError struct {
	Op  string
	Key string
	Err error
}

func (e *StoreError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("cache.%s: %v: %v", e.Op, ErrStoreUnavailable, e.Err)
	}
	return fmt.Sprintf("cache.%s %s: %v: %v", e.Op, e.Key, ErrStoreUnavailable, e.Err)
}

func (e *StoreError) Is(target error) bool { return target == ErrStoreUnavailable }

func (e *StoreError) Unwrap() error { return e.Err }

func unavailable(op, key string, err error) error {
	return &StoreError{Op: op, Key: key, Err: err}
}
