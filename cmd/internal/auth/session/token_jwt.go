package session

import (
	"crypto/rsa"
	"strconv"
	"time"

	"parley/cmd/identity"

	"github.com/golang-jwt/jwt/v5"
)

type accessJWTClaims struct {
	User accessUser `json:"user"`
	jwt.RegisteredClaims
}

type jwtRS256Manager struct {
	issuer    string
	clockSkew time.Duration
	priv      *rsa.PrivateKey
	pub       *rsa.PublicKey
}

// NewJWTRS256Manager builds an AccessTokenManager that signs RS256 JWTs.
// Verification accepts RS256 only.
func NewJWTRS256Manager(cfg Config, priv *rsa.PrivateKey, pub *rsa.PublicKey) (AccessTokenManager, error) {
	if priv == nil {
		return nil, ErrConfig
	}
	if pub == nil {
		pub = &priv.PublicKey
	}
	if priv.N.BitLen() < 2048 {
		return nil, ErrConfig
	}
	return &jwtRS256Manager{
		issuer:    cfg.Issuer,
		clockSkew: cfg.ClockSkew,
		priv:      priv,
		pub:       pub,
	}, nil
}

func (m *jwtRS256Manager) Algorithm() string { return jwt.SigningMethodRS256.Alg() }

func (m *jwtRS256Manager) Issue(p identity.Principal, ttl time.Duration, now time.Time) (string, time.Time, error) {
	claims := accessJWTClaims{
		User: accessUser{ID: p.ID, Username: p.Username},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(p.ID, 10),
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(m.priv)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, claims.ExpiresAt.Time, nil
}

func (m *jwtRS256Manager) Verify(token string, now time.Time) (AccessClaims, error) {
	var claims accessJWTClaims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return m.pub, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(m.clockSkew),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return AccessClaims{}, ErrInvalidSignature
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 || id != claims.User.ID {
		return AccessClaims{}, ErrInvalidSignature
	}

	out := AccessClaims{
		PrincipalID: id,
		Username:    claims.User.Username,
		Issuer:      claims.Issuer,
		ExpiresAt:   claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	return out, nil
}
