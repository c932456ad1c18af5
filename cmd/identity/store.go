package identity

import (
	"context"
	"time"
)

// User is the security principal.
type User struct {
	ID           int64
	Username     string
	UsernameNorm string
	PasswordHash string
	CreatedAt    time.Time
}

// Principal is the subset of User carried inside access credentials.
type Principal struct {
	ID       int64
	Username string
}

func (u User) Principal() Principal {
	return Principal{ID: u.ID, Username: u.Username}
}

// CreateUserInput carries an already hashed password; hashing is the caller's concern.
type CreateUserInput struct {
	Username     string
	PasswordHash string
	Now          time.Time
}

// Store is the identity persistence boundary.
type Store interface {
	CreateUser(ctx context.Context, in CreateUserInput) (User, error)
	GetByID(ctx context.Context, id int64) (User, error)
	GetByUsername(ctx context.Context, username string) (User, error)
	SetPasswordHash(ctx context.Context, id int64, hash string) error
}
