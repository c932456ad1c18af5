package session

import (
	"errors"
	"strings"
	"time"

	"parley/cmd/identity"
	"parley/cmd/security/token"
)

// isoMillis matches the wire format clients already parse (UTC, millisecond precision).
const isoMillis = "2006-01-02T15:04:05.000Z"

// Credential is one issued credential with its expiry.
type Credential struct {
	Token     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TTL is the credential lifetime at issuance.
func (c Credential) TTL() time.Duration { return c.ExpiresAt.Sub(c.IssuedAt) }

func (c Credential) ExpiryEpoch() int64      { return c.ExpiresAt.Unix() }
func (c Credential) ExpiryDate() string      { return c.ExpiresAt.UTC().Format(isoMillis) }
func (c Credential) ExpiresInSeconds() int64 { return int64(c.TTL().Round(time.Second) / time.Second) }

// Issued groups the three credentials handed out at login or refresh.
type Issued struct {
	Principal identity.Principal
	Access    Credential
	Refresh   Credential
	Realtime  Credential
}

// Issuer mints credentials. It has no side effects; the Service persists
// the refresh and realtime values.
type Issuer struct {
	cfg    Config
	tokens AccessTokenManager
}

func NewIssuer(cfg Config, tokens AccessTokenManager) (*Issuer, error) {
	if tokens == nil {
		return nil, errors.New("session: nil access token manager")
	}
	return &Issuer{cfg: cfg, tokens: tokens}, nil
}

// Issue mints all three credentials. accessTTL <= 0 selects the configured default.
func (i *Issuer) Issue(p identity.Principal, accessTTL time.Duration, now time.Time) (Issued, error) {
	if accessTTL <= 0 {
		accessTTL = i.cfg.AccessTokenTTL
	}

	access, exp, err := i.tokens.Issue(p, accessTTL, now)
	if err != nil {
		return Issued{}, err
	}

	refresh, err := i.opaque(p.ID, i.cfg.RefreshTokenTTL, now)
	if err != nil {
		return Issued{}, err
	}
	realtime, err := i.opaque(p.ID, i.cfg.RealtimeTokenTTL, now)
	if err != nil {
		return Issued{}, err
	}

	return Issued{
		Principal: p,
		Access:    Credential{Token: access, IssuedAt: now, ExpiresAt: exp},
		Refresh:   refresh,
		Realtime:  realtime,
	}, nil
}

// NewRealtime mints only a realtime credential.
func (i *Issuer) NewRealtime(principalID int64, now time.Time) (Credential, error) {
	return i.opaque(principalID, i.cfg.RealtimeTokenTTL, now)
}

func (i *Issuer) opaque(principalID int64, ttl time.Duration, now time.Time) (Credential, error) {
	v, err := token.NewOpaque(principalID, i.cfg.CredentialBytes)
	if err != nil {
		return Credential{}, err
	}
	return Credential{Token: v, IssuedAt: now, ExpiresAt: now.Add(ttl)}, nil
}

// Verify checks an access credential and returns its principal id.
// A leading "Bearer " is ignored. Every failure is ErrInvalidSignature.
func (i *Issuer) Verify(accessToken string, now time.Time) (int64, error) {
	claims, err := i.VerifyClaims(accessToken, now)
	if err != nil {
		return 0, err
	}
	return claims.PrincipalID, nil
}

// VerifyClaims is Verify returning the full claim set.
func (i *Issuer) VerifyClaims(accessToken string, now time.Time) (AccessClaims, error) {
	accessToken = StripBearer(accessToken)
	if accessToken == "" || len(accessToken) > 8192 {
		return AccessClaims{}, ErrInvalidSignature
	}
	claims, err := i.tokens.Verify(accessToken, now)
	if err != nil {
		return AccessClaims{}, ErrInvalidSignature
	}
	return claims, nil
}

// StripBearer removes a case-insensitive "Bearer " prefix.
func StripBearer(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 7 && strings.EqualFold(s[:7], "bearer ") {
		return strings.TrimSpace(s[7:])
	}
	return s
}
