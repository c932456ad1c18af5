package identity

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used when no database is configured.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]User
	byName map[string]int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:   make(map[int64]User),
		byName: make(map[string]int64),
	}
}

func (s *MemoryStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	if in.Username == "" || in.PasswordHash == "" {
		return User{}, invalid(op, "username and password hash are required")
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	norm := NormalizeUsername(in.Username)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byName[norm]; taken {
		return User{}, ConflictError{Op: op, Field: "username"}
	}

	s.nextID++
	u := User{
		ID:           s.nextID,
		Username:     in.Username,
		UsernameNorm: norm,
		PasswordHash: in.PasswordHash,
		CreatedAt:    now,
	}
	s.byID[u.ID] = u
	s.byName[norm] = u.ID
	return u, nil
}

func (s *MemoryStore) GetByID(ctx context.Context, id int64) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]
	if !ok {
		return User{}, notFound("identity.GetByID")
	}
	return u, nil
}

func (s *MemoryStore) GetByUsername(ctx context.Context, username string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byName[NormalizeUsername(username)]
	if !ok {
		return User{}, notFound("identity.GetByUsername")
	}
	return s.byID[id], nil
}

func (s *MemoryStore) SetPasswordHash(ctx context.Context, id int64, hash string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if hash == "" {
		return invalid("identity.SetPasswordHash", "empty hash")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]
	if !ok {
		return notFound("identity.SetPasswordHash")
	}
	u.PasswordHash = hash
	s.byID[id] = u
	return nil
}
