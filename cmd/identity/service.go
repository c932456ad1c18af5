package identity

import (
	"context"
	"errors"
	"strings"
	"time"
)

// PasswordHasher is satisfied by password.Config.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(encodedHash, password string) (bool, error)
	NeedsRehash(encodedHash string) bool
}

// Service registers and authenticates principals on top of a Store.
type Service struct {
	store  Store
	hasher PasswordHasher

	// dummyHash is verified against when the username is unknown so both
	// failure paths cost one Argon2id evaluation.
	dummyHash string
}

func NewService(store Store, hasher PasswordHasher) (*Service, error) {
	if store == nil || hasher == nil {
		return nil, errors.New("identity: nil store or hasher")
	}
	dummy, err := hasher.Hash("parley-unknown-user-placeholder")
	if err != nil {
		return nil, err
	}
	return &Service{store: store, hasher: hasher, dummyHash: dummy}, nil
}

// Register validates input, hashes the password and creates the user.
func (s *Service) Register(ctx context.Context, username, password string, now time.Time) (User, error) {
	const op = "identity.Register"

	username = strings.TrimSpace(username)
	if err := ValidateUsername(username); err != nil {
		return User{}, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return User{}, invalid(op, err.Error())
	}

	return s.store.CreateUser(ctx, CreateUserInput{
		Username:     username,
		PasswordHash: hash,
		Now:          now,
	})
}

// Authenticate returns the user when username and password match.
// Unknown user and wrong password both yield ErrBadCredentials.
func (s *Service) Authenticate(ctx context.Context, username, password string) (User, error) {
	const op = "identity.Authenticate"

	u, err := s.store.GetByUsername(ctx, username)
	if err != nil {
		if IsNotFound(err) {
			_, _ = s.hasher.Verify(s.dummyHash, password)
			return User{}, OpError{Op: op, Kind: ErrBadCredentials}
		}
		return User{}, err
	}

	ok, err := s.hasher.Verify(u.PasswordHash, password)
	if err != nil || !ok {
		return User{}, OpError{Op: op, Kind: ErrBadCredentials}
	}

	// Upgrade hashes made under older cost parameters. Failure leaves the
	// old hash in place; it still verifies.
	if s.hasher.NeedsRehash(u.PasswordHash) {
		if hash, herr := s.hasher.Hash(password); herr == nil {
			if s.store.SetPasswordHash(ctx, u.ID, hash) == nil {
				u.PasswordHash = hash
			}
		}
	}
	return u, nil
}

// GetByID is a pass-through used by the session refresh flow.
func (s *Service) GetByID(ctx context.Context, id int64) (User, error) {
	return s.store.GetByID(ctx, id)
}
