package session

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"sync"
	"testing"
	"time"

	"parley/cmd/identity"
)

var (
	testKeyOnce sync.Once
	testKey     *rsa.PrivateKey
	testKeyErr  error
)

func rsaTestKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	testKeyOnce.Do(func() {
		testKey, testKeyErr = rsa.GenerateKey(rand.Reader, 2048)
	})
	if testKeyErr != nil {
		t.Fatalf("rsa.GenerateKey: %v", testKeyErr)
	}
	return testKey
}

func newTestIssuer(t *testing.T, cfg Config) *Issuer {
	t.Helper()
	mgr, err := NewJWTRS256Manager(cfg, rsaTestKey(t), nil)
	if err != nil {
		t.Fatalf("NewJWTRS256Manager: %v", err)
	}
	iss, err := NewIssuer(cfg, mgr)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	return iss
}

type fakeUsers map[int64]identity.User

func (f fakeUsers) GetByID(_ context.Context, id int64) (identity.User, error) {
	u, ok := f[id]
	if !ok {
		return identity.User{}, identity.OpError{Op: "test.GetByID", Kind: identity.ErrNotFound}
	}
	return u, nil
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}
