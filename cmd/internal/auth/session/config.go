package session

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Token formats for access credentials. One format is fixed per deployment.
const (
	FormatJWT    = "jwt"
	FormatPaseto = "paseto"
)

// Config defines runtime configuration for credential issuance.
type Config struct {
	// Issuer is set as "iss" on access credentials and required on verification.
	Issuer string

	// Format selects the access credential scheme: FormatJWT (RS256) or FormatPaseto (v4.public).
	Format string

	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration
	RealtimeTokenTTL time.Duration

	// ClockSkew is tolerated on access verification. Zero means a credential
	// fails at exactly its expiry instant.
	ClockSkew time.Duration

	// CredentialBytes is the random suffix size of refresh and realtime credentials.
	CredentialBytes int

	// RS256 key material, PEM encoded. An empty public key path derives it from the private key.
	JWTPrivateKeyPath string
	JWTPublicKeyPath  string

	// PasetoV4SecretKeyHex is the hex-encoded Ed25519 secret key for FormatPaseto.
	PasetoV4SecretKeyHex string
}

// DefaultConfig returns the standard lifetimes: access 15m, refresh 7d, realtime 15m.
func DefaultConfig() Config {
	return Config{
		Issuer:            "parley",
		Format:            FormatJWT,
		AccessTokenTTL:    15 * time.Minute,
		RefreshTokenTTL:   7 * 24 * time.Hour,
		RealtimeTokenTTL:  15 * time.Minute,
		CredentialBytes:   32,
		JWTPrivateKeyPath: "jwt_private.key",
		JWTPublicKeyPath:  "jwt_public.key",
	}
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Optional (durations must be valid Go duration strings):
//   - PARLEY_AUTH_TOKEN_FORMAT (jwt|paseto)
//   - PARLEY_AUTH_ISSUER
//   - PARLEY_AUTH_ACCESS_TTL, PARLEY_AUTH_REFRESH_TTL, PARLEY_AUTH_REALTIME_TTL
//   - PARLEY_AUTH_CLOCK_SKEW
//   - PARLEY_AUTH_CREDENTIAL_BYTES (32..64)
//   - PARLEY_JWT_PRIVATE_KEY_PATH, PARLEY_JWT_PUBLIC_KEY_PATH
//
// Required when the format is paseto:
//   - PARLEY_PASETO_V4_SECRET_KEY_HEX
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := env("PARLEY_AUTH_TOKEN_FORMAT"); v != "" {
		cfg.Format = strings.ToLower(v)
	}
	if v := env("PARLEY_AUTH_ISSUER"); v != "" {
		cfg.Issuer = v
	}

	durations := []struct {
		key       string
		dst       *time.Duration
		allowZero bool
	}{
		{"PARLEY_AUTH_ACCESS_TTL", &cfg.AccessTokenTTL, false},
		{"PARLEY_AUTH_REFRESH_TTL", &cfg.RefreshTokenTTL, false},
		{"PARLEY_AUTH_REALTIME_TTL", &cfg.RealtimeTokenTTL, false},
		{"PARLEY_AUTH_CLOCK_SKEW", &cfg.ClockSkew, true},
	}
	for _, d := range durations {
		v := env(d.key)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil || parsed < 0 || (parsed == 0 && !d.allowZero) {
			return Config{}, ErrConfig
		}
		*d.dst = parsed
	}

	if v := env("PARLEY_AUTH_CREDENTIAL_BYTES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 32 || n > 64 {
			return Config{}, ErrConfig
		}
		cfg.CredentialBytes = n
	}

	if v, ok := os.LookupEnv("PARLEY_JWT_PRIVATE_KEY_PATH"); ok {
		cfg.JWTPrivateKeyPath = strings.TrimSpace(v)
	}
	if v, ok := os.LookupEnv("PARLEY_JWT_PUBLIC_KEY_PATH"); ok {
		cfg.JWTPublicKeyPath = strings.TrimSpace(v)
	}
	cfg.PasetoV4SecretKeyHex = env("PARLEY_PASETO_V4_SECRET_KEY_HEX")

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field invariants.
func (c Config) Validate() error {
	switch c.Format {
	case FormatJWT:
		if c.JWTPrivateKeyPath == "" {
			return ErrConfig
		}
	case FormatPaseto:
		if c.PasetoV4SecretKeyHex == "" {
			return ErrConfig
		}
	default:
		return ErrConfig
	}
	if c.Issuer == "" || c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 || c.RealtimeTokenTTL <= 0 {
		return ErrConfig
	}
	if c.ClockSkew < 0 || c.CredentialBytes < 32 {
		return ErrConfig
	}
	return nil
}

func env(key string) string { return strings.TrimSpace(os.Getenv(key)) }
