package session

import (
	"crypto/rsa"
	"fmt"
	"os"
	"time"

	"parley/cmd/identity"

	"github.com/golang-jwt/jwt/v5"
)

// AccessClaims is what a verified access credential proves.
type AccessClaims struct {
	PrincipalID int64
	Username    string
	Issuer      string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// AccessTokenManager signs and verifies access credentials for one fixed scheme.
type AccessTokenManager interface {
	Issue(p identity.Principal, ttl time.Duration, now time.Time) (token string, exp time.Time, err error)
	Verify(token string, now time.Time) (AccessClaims, error)
	Algorithm() string
}

// accessUser is the "user" claim carried in both token formats.
type accessUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// NewAccessTokenManager loads key material for cfg.Format once.
func NewAccessTokenManager(cfg Config) (AccessTokenManager, error) {
	switch cfg.Format {
	case FormatJWT:
		priv, pub, err := LoadRSAKeys(cfg.JWTPrivateKeyPath, cfg.JWTPublicKeyPath)
		if err != nil {
			return nil, err
		}
		return NewJWTRS256Manager(cfg, priv, pub)
	case FormatPaseto:
		return NewPasetoV4PublicManager(cfg)
	default:
		return nil, fmt.Errorf("%w: unknown token format %q", ErrConfig, cfg.Format)
	}
}

// LoadRSAKeys reads a PEM private key and, when pubPath is set, a PEM public key.
// The public key must match the private key.
func LoadRSAKeys(privPath, pubPath string) (*rsa.PrivateKey, *rsa.PublicKey, error) {
	raw, err := os.ReadFile(privPath) // #nosec G304 -- operator supplied path.
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read private key: %v", ErrConfig, err)
	}
	priv, err := jwt.ParseRSAPrivateKeyFromPEM(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: parse private key: %v", ErrConfig, err)
	}
	if pubPath == "" {
		return priv, &priv.PublicKey, nil
	}

	raw, err = os.ReadFile(pubPath) // #nosec G304 -- operator supplied path.
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read public key: %v", ErrConfig, err)
	}
	pub, err := jwt.ParseRSAPublicKeyFromPEM(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: parse public key: %v", ErrConfig, err)
	}
	if !pub.Equal(&priv.PublicKey) {
		return nil, nil, fmt.Errorf("%w: public key does not match private key", ErrConfig)
	}
	return priv, pub, nil
}
