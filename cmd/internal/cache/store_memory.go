package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"parley/cmd/security/token"
)

type memEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryStore is an in-process TokenStore for single-node dev and tests.
// Expired entries are treated as missing and dropped lazily.
type MemoryStore struct {
	mu     sync.Mutex
	items  map[string]memEntry
	now    func() time.Time
	closed bool
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock overrides the time source.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		items: make(map[string]memEntry),
		now:   time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

var errClosed = errors.New("memory store closed")

// lookup returns the live entry for key. Caller holds mu.
func (s *MemoryStore) lookup(key string) (memEntry, bool) {
	e, ok := s.items[key]
	if !ok {
		return memEntry{}, false
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.items, key)
		return memEntry{}, false
	}
	return e, true
}

func (s *MemoryStore) Store(ctx context.Context, kind Kind, principalID int64, value string, ttl time.Duration) error {
	if err := checkArgs(kind, ttl, true); err != nil {
		return err
	}
	key := Key(kind, principalID)
	if err := ctx.Err(); err != nil {
		return unavailable("Store", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return unavailable("Store", key, errClosed)
	}
	s.items[key] = memEntry{value: value, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Validate(ctx context.Context, kind Kind, principalID int64, value string) (bool, error) {
	stored, ok, err := s.Read(ctx, kind, principalID)
	if err != nil || !ok {
		return false, err
	}
	return token.Equal(stored, value), nil
}

func (s *MemoryStore) Rotate(ctx context.Context, kind Kind, principalID int64, current, next string, ttl time.Duration) (bool, error) {
	if err := checkArgs(kind, ttl, true); err != nil {
		return false, err
	}
	key := Key(kind, principalID)
	if err := ctx.Err(); err != nil {
		return false, unavailable("Rotate", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, unavailable("Rotate", key, errClosed)
	}
	e, ok := s.lookup(key)
	if !ok || current == "" || !token.Equal(e.value, current) {
		return false, nil
	}
	s.items[key] = memEntry{value: next, expiresAt: s.now().Add(ttl)}
	return true, nil
}

func (s *MemoryStore) Invalidate(ctx context.Context, kind Kind, principalID int64) error {
	if err := checkArgs(kind, 0, false); err != nil {
		return err
	}
	key := Key(kind, principalID)
	if err := ctx.Err(); err != nil {
		return unavailable("Invalidate", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return unavailable("Invalidate", key, errClosed)
	}
	delete(s.items, key)
	return nil
}

func (s *MemoryStore) SetExpiration(ctx context.Context, kind Kind, principalID int64, ttl time.Duration) error {
	if err := checkArgs(kind, ttl, true); err != nil {
		return err
	}
	key := Key(kind, principalID)
	if err := ctx.Err(); err != nil {
		return unavailable("SetExpiration", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return unavailable("SetExpiration", key, errClosed)
	}
	e, ok := s.lookup(key)
	if !ok {
		return ErrNotFound
	}
	e.expiresAt = s.now().Add(ttl)
	s.items[key] = e
	return nil
}

func (s *MemoryStore) Read(ctx context.Context, kind Kind, principalID int64) (string, bool, error) {
	if err := checkArgs(kind, 0, false); err != nil {
		return "", false, err
	}
	key := Key(kind, principalID)
	if err := ctx.Err(); err != nil {
		return "", false, unavailable("Read", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", false, unavailable("Read", key, errClosed)
	}
	e, ok := s.lookup(key)
	if !ok {
		return "", false, nil
	}
	return e.value, true, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return unavailable("Ping", "", errClosed)
	}
	return ctx.Err()
}

// Close marks the store unavailable. Later calls fail with ErrStoreUnavailable.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.items = make(map[string]memEntry)
	s.mu.Unlock()
	return nil
}
