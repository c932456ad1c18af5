package session

import (
	"strconv"
	"time"

	"parley/cmd/identity"

	paseto "aidanwoods.dev/go-paseto"
)

type pasetoV4PublicManager struct {
	issuer    string
	clockSkew time.Duration

	secret paseto.V4AsymmetricSecretKey
	public paseto.V4AsymmetricPublicKey
}

// NewPasetoV4PublicManager builds an AccessTokenManager based on PASETO v4.public (Ed25519).
func NewPasetoV4PublicManager(cfg Config) (AccessTokenManager, error) {
	secret, err := paseto.NewV4AsymmetricSecretKeyFromHex(cfg.PasetoV4SecretKeyHex)
	if err != nil {
		return nil, ErrConfig
	}

	return &pasetoV4PublicManager{
		issuer:    cfg.Issuer,
		clockSkew: cfg.ClockSkew,
		secret:    secret,
		public:    secret.Public(),
	}, nil
}

func (m *pasetoV4PublicManager) Algorithm() string { return "v4.public" }

func (m *pasetoV4PublicManager) Issue(p identity.Principal, ttl time.Duration, now time.Time) (string, time.Time, error) {
	exp := now.Add(ttl)

	tok := paseto.NewToken()
	tok.SetIssuer(m.issuer)
	tok.SetSubject(strconv.FormatInt(p.ID, 10))
	tok.SetIssuedAt(now)
	tok.SetNotBefore(now)
	tok.SetExpiration(exp)
	if err := tok.Set("user", accessUser{ID: p.ID, Username: p.Username}); err != nil {
		return "", time.Time{}, err
	}

	return tok.V4Sign(m.secret, nil), exp, nil
}

func (m *pasetoV4PublicManager) Verify(token string, now time.Time) (AccessClaims, error) {
	// A fresh parser per call; rules accumulate on the parser.
	p := paseto.NewParserWithoutExpiryCheck()
	p.AddRule(paseto.IssuedBy(m.issuer))
	p.AddRule(paseto.ValidAt(now.Add(m.clockSkew)))

	parsed, err := p.ParseV4Public(m.public, token, nil)
	if err != nil {
		return AccessClaims{}, ErrInvalidSignature
	}

	exp, err := parsed.GetExpiration()
	if err != nil || !now.Before(exp.Add(m.clockSkew)) {
		return AccessClaims{}, ErrInvalidSignature
	}

	sub, err := parsed.GetSubject()
	if err != nil {
		return AccessClaims{}, ErrInvalidSignature
	}
	id, err := strconv.ParseInt(sub, 10, 64)
	if err != nil || id <= 0 {
		return AccessClaims{}, ErrInvalidSignature
	}

	var user accessUser
	if err := parsed.Get("user", &user); err != nil || user.ID != id {
		return AccessClaims{}, ErrInvalidSignature
	}

	iss, _ := parsed.GetIssuer()
	iat, _ := parsed.GetIssuedAt()

	return AccessClaims{
		PrincipalID: id,
		Username:    user.Username,
		Issuer:      iss,
		IssuedAt:    iat,
		ExpiresAt:   exp,
	}, nil
}
