package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements identity persistence over PostgreSQL.
//
// The pgx pool is owned by the caller; this store never closes it.
// Schema identifiers are quoted with pgx.Identifier.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema (default "parley").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("identity: empty schema")
		}
		if !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("identity: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{pool: pool, schema: "parley"}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("identity: nil pool")
	}
	return st, nil
}

func (s *PostgresStore) users() string {
	return pgx.Identifier{s.schema, "users"}.Sanitize()
}

func (s *PostgresStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"

	if s == nil || s.pool == nil {
		return User{}, invalid(op, "nil store")
	}
	username := strings.TrimSpace(in.Username)
	if username == "" || in.PasswordHash == "" {
		return User{}, invalid(op, "username and password hash are required")
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	u := User{
		Username:     username,
		UsernameNorm: NormalizeUsername(username),
		PasswordHash: in.PasswordHash,
		CreatedAt:    now,
	}

	err := s.pool.QueryRow(ctx,
		`INSERT INTO `+s.users()+` (username, username_norm, password_hash, created_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		u.Username, u.UsernameNorm, u.PasswordHash, u.CreatedAt,
	).Scan(&u.ID)
	if err != nil {
		if pgIsUniqueViolation(err) {
			return User{}, ConflictError{Op: op, Field: "username"}
		}
		return User{}, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id int64) (User, error) {
	return s.getOne(ctx, "identity.GetByID", `id = $1`, id)
}

func (s *PostgresStore) GetByUsername(ctx context.Context, username string) (User, error) {
	norm := NormalizeUsername(username)
	if norm == "" {
		return User{}, notFound("identity.GetByUsername")
	}
	return s.getOne(ctx, "identity.GetByUsername", `username_norm = $1`, norm)
}

func (s *PostgresStore) SetPasswordHash(ctx context.Context, id int64, hash string) error {
	const op = "identity.SetPasswordHash"

	if s == nil || s.pool == nil {
		return invalid(op, "nil store")
	}
	if hash == "" {
		return invalid(op, "empty hash")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE `+s.users()+` SET password_hash = $2 WHERE id = $1`, id, hash)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(op)
	}
	return nil
}

func (s *PostgresStore) getOne(ctx context.Context, op, where string, arg any) (User, error) {
	if s == nil || s.pool == nil {
		return User{}, invalid(op, "nil store")
	}

	var u User
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, username_norm, password_hash, created_at
		   FROM `+s.users()+`
		  WHERE `+where,
		arg,
	).Scan(&u.ID, &u.Username, &u.UsernameNorm, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, notFound(op)
	}
	if err != nil {
		return User{}, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

func pgIsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505"
}
