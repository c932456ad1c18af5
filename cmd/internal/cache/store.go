package cache

import (
	"context"
	"strconv"
	"time"
)

// Kind selects which session credential a key holds.
type Kind string

const (
	KindRefresh  Kind = "refresh"
	KindRealtime Kind = "websocket"
)

func (k Kind) valid() bool { return k == KindRefresh || k == KindRealtime }

// Key returns the store key for (kind, principalID).
func Key(kind Kind, principalID int64) string {
	return string(kind) + "_token:" + strconv.FormatInt(principalID, 10)
}

// TokenStore is the credential cache contract. Implementations are safe for concurrent use
// and resolve concurrent writes to the same key as last-write-wins.
type TokenStore interface {
	// Store upserts value with the given TTL.
	Store(ctx context.Context, kind Kind, principalID int64, value string, ttl time.Duration) error

	// Validate reports whether a live value exists and equals value exactly.
	Validate(ctx context.Context, kind Kind, principalID int64, value string) (bool, error)

	// Rotate replaces the live value with next only if it currently equals
	// current, as one atomic step. It reports whether the swap happened.
	Rotate(ctx context.Context, kind Kind, principalID int64, current, next string, ttl time.Duration) (bool, error)

	// Invalidate deletes the key. Deleting a missing key is not an error.
	Invalidate(ctx context.Context, kind Kind, principalID int64) error

	// SetExpiration re-applies ttl to the existing value without changing it.
	SetExpiration(ctx context.Context, kind Kind, principalID int64, ttl time.Duration) error

	// Read returns the live value, if any.
	Read(ctx context.Context, kind Kind, principalID int64) (string, bool, error)

	Ping(ctx context.Context) error
	Close() error
}

func checkArgs(kind Kind, ttl time.Duration, needTTL bool) error {
	if !kind.valid() {
		return ErrInvalidKind
	}
	if needTTL && ttl <= 0 {
		return ErrInvalidTTL
	}
	return nil
}
