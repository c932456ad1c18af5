package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"parley/cmd/identity"
	"parley/cmd/internal/cache"
	"parley/cmd/security/token"
)

// UserLookup resolves principals during refresh.
type UserLookup interface {
	GetByID(ctx context.Context, id int64) (identity.User, error)
}

// Service drives the credential lifecycle: login, refresh rotation, logout,
// and realtime credential regeneration.
type Service struct {
	cfg    Config
	issuer *Issuer
	store  cache.TokenStore
	users  UserLookup
	log    *slog.Logger
	now    func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

func NewService(cfg Config, issuer *Issuer, store cache.TokenStore, users UserLookup, opts ...ServiceOption) (*Service, error) {
	if issuer == nil || store == nil || users == nil {
		return nil, errors.New("session: missing dependency")
	}
	s := &Service{
		cfg:    cfg,
		issuer: issuer,
		store:  store,
		users:  users,
		log:    slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Login issues a fresh credential set for an already authenticated user and
// makes its refresh and realtime values the live ones.
func (s *Service) Login(ctx context.Context, u identity.User) (Issued, error) {
	return s.issueAndStore(ctx, u.Principal())
}

// Refresh rotates both session credentials. The refresh swap is a single
// compare-and-set in the store, so of any concurrent calls presenting the
// same value at most one succeeds; the rest get ErrUnauthorized.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Issued, error) {
	pid, err := token.PrincipalOf(refreshToken)
	if err != nil {
		return Issued{}, ErrUnauthorized
	}

	u, err := s.users.GetByID(ctx, pid)
	if err != nil {
		if identity.IsNotFound(err) {
			return Issued{}, ErrUnauthorized
		}
		return Issued{}, err
	}

	out, err := s.issuer.Issue(u.Principal(), 0, s.now())
	if err != nil {
		return Issued{}, err
	}
	swapped, err := s.store.Rotate(ctx, cache.KindRefresh, pid, refreshToken, out.Refresh.Token, out.Refresh.TTL())
	if err != nil {
		return Issued{}, fmt.Errorf("rotate refresh credential: %w", err)
	}
	if !swapped {
		s.log.Info("auth.refresh.rejected", "principal_id", pid)
		return Issued{}, ErrUnauthorized
	}
	if err := s.store.Store(ctx, cache.KindRealtime, pid, out.Realtime.Token, out.Realtime.TTL()); err != nil {
		return Issued{}, fmt.Errorf("store realtime credential: %w", err)
	}
	s.log.Info("auth.refresh.rotated", "principal_id", pid)
	return out, nil
}

// Logout revokes both session credentials for principalID.
func (s *Service) Logout(ctx context.Context, principalID int64) error {
	if err := s.store.Invalidate(ctx, cache.KindRefresh, principalID); err != nil {
		return err
	}
	return s.store.Invalidate(ctx, cache.KindRealtime, principalID)
}

// RegenerateRealtime replaces the realtime credential only.
func (s *Service) RegenerateRealtime(ctx context.Context, principalID int64) (Credential, error) {
	c, err := s.issuer.NewRealtime(principalID, s.now())
	if err != nil {
		return Credential{}, err
	}
	if err := s.store.Store(ctx, cache.KindRealtime, principalID, c.Token, c.TTL()); err != nil {
		return Credential{}, err
	}
	return c, nil
}

// ValidateRealtime reports whether value is the live realtime credential for principalID.
// Store failures are returned as-is so callers can tell them apart from a mismatch.
func (s *Service) ValidateRealtime(ctx context.Context, principalID int64, value string) (bool, error) {
	if value == "" {
		return false, nil
	}
	return s.store.Validate(ctx, cache.KindRealtime, principalID, value)
}

// VerifyAccess checks an access credential against the current time.
func (s *Service) VerifyAccess(accessToken string) (int64, error) {
	return s.issuer.Verify(accessToken, s.now())
}

// VerifyAccessClaims is VerifyAccess returning the full claim set.
func (s *Service) VerifyAccessClaims(accessToken string) (AccessClaims, error) {
	return s.issuer.VerifyClaims(accessToken, s.now())
}

func (s *Service) issueAndStore(ctx context.Context, p identity.Principal) (Issued, error) {
	out, err := s.issuer.Issue(p, 0, s.now())
	if err != nil {
		return Issued{}, err
	}
	if err := s.store.Store(ctx, cache.KindRefresh, p.ID, out.Refresh.Token, out.Refresh.TTL()); err != nil {
		return Issued{}, fmt.Errorf("store refresh credential: %w", err)
	}
	if err := s.store.Store(ctx, cache.KindRealtime, p.ID, out.Realtime.Token, out.Realtime.TTL()); err != nil {
		return Issued{}, fmt.Errorf("store realtime credential: %w", err)
	}
	return out, nil
}
