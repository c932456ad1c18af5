package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"parley/cmd/security/token"

	"github.com/redis/go-redis/v9"
)

// rotateScript swaps KEYS[1] from ARGV[1] to ARGV[2] with a PX of ARGV[3].
var rotateScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
	return 1
end
return 0
`)

// RedisStore keeps credentials as plain string keys with native expiry.
type RedisStore struct {
	client *redis.Client
	owned  bool
}

// NewRedisStore wraps an existing client. The caller keeps ownership of client.
func NewRedisStore(client *redis.Client) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("cache: nil redis client")
	}
	return &RedisStore{client: client}, nil
}

// OpenRedis dials redis from cfg and verifies connectivity. Close releases the client.
func OpenRedis(ctx context.Context, cfg Config) (*RedisStore, error) {
	if !cfg.UseRedis() {
		return nil, fmt.Errorf("%w: missing redis addr", ErrConfig)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
	})

	s := &RedisStore{client: client, owned: true}
	if err := s.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return s, nil
}

func (s *RedisStore) Store(ctx context.Context, kind Kind, principalID int64, value string, ttl time.Duration) error {
	if err := checkArgs(kind, ttl, true); err != nil {
		return err
	}
	key := Key(kind, principalID)
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return unavailable("Store", key, err)
	}
	return nil
}

func (s *RedisStore) Validate(ctx context.Context, kind Kind, principalID int64, value string) (bool, error) {
	stored, ok, err := s.Read(ctx, kind, principalID)
	if err != nil || !ok {
		return false, err
	}
	return token.Equal(stored, value), nil
}

func (s *RedisStore) Rotate(ctx context.Context, kind Kind, principalID int64, current, next string, ttl time.Duration) (bool, error) {
	if err := checkArgs(kind, ttl, true); err != nil {
		return false, err
	}
	if current == "" {
		return false, nil
	}
	key := Key(kind, principalID)

	ms := ttl.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	n, err := rotateScript.Run(ctx, s.client, []string{key}, current, next, ms).Int()
	if err != nil {
		return false, unavailable("Rotate", key, err)
	}
	return n == 1, nil
}

func (s *RedisStore) Invalidate(ctx context.Context, kind Kind, principalID int64) error {
	if err := checkArgs(kind, 0, false); err != nil {
		return err
	}
	key := Key(kind, principalID)
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return unavailable("Invalidate", key, err)
	}
	return nil
}

func (s *RedisStore) SetExpiration(ctx context.Context, kind Kind, principalID int64, ttl time.Duration) error {
	if err := checkArgs(kind, ttl, true); err != nil {
		return err
	}
	key := Key(kind, principalID)

	// PEXPIRE keeps sub-second TTLs exact; EXPIRE would round them up.
	ok, err := s.client.PExpire(ctx, key, ttl).Result()
	if err != nil {
		return unavailable("SetExpiration", key, err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) Read(ctx context.Context, kind Kind, principalID int64) (string, bool, error) {
	if err := checkArgs(kind, 0, false); err != nil {
		return "", false, err
	}
	key := Key(kind, principalID)

	v, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, unavailable("Read", key, err)
	}
	return v, true, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return unavailable("Ping", "", err)
	}
	return nil
}

// Close releases the client if this store dialed it.
func (s *RedisStore) Close() error {
	if !s.owned {
		return nil
	}
	return s.client.Close()
}
