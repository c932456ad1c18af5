package cache

import (
	"errors"
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"
)

// Config selects and tunes the credential store backend.
// An empty RedisAddr selects the in-process store.
type Config struct {
	RedisAddr     string        `env:"PARLEY_REDIS_ADDR"`
	RedisPassword string        `env:"PARLEY_REDIS_PASSWORD"`
	RedisDB       int           `env:"PARLEY_REDIS_DB,default=0"`
	DialTimeout   time.Duration `env:"PARLEY_REDIS_DIAL_TIMEOUT,default=3s"`
	ReadTimeout   time.Duration `env:"PARLEY_REDIS_READ_TIMEOUT,default=2s"`
	WriteTimeout  time.Duration `env:"PARLEY_REDIS_WRITE_TIMEOUT,default=2s"`
	PoolSize      int           `env:"PARLEY_REDIS_POOL_SIZE,default=10"`
}

// LoadConfig decodes Config from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if cfg.RedisDB < 0 || cfg.PoolSize < 0 {
		return Config{}, ErrConfig
	}
	return cfg, nil
}

// UseRedis reports whether a redis backend is configured.
func (c Config) UseRedis() bool { return c.RedisAddr != "" }
