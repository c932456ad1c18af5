package session

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"parley/cmd/identity"

	paseto "aidanwoods.dev/go-paseto"
	"github.com/golang-jwt/jwt/v5"
)

func TestJWTRS256_IssueAndVerify(t *testing.T) {
	cfg := DefaultConfig()
	mgr, err := NewJWTRS256Manager(cfg, rsaTestKey(t), nil)
	if err != nil {
		t.Fatalf("NewJWTRS256Manager: %v", err)
	}
	if mgr.Algorithm() != "RS256" {
		t.Fatalf("alg=%s", mgr.Algorithm())
	}

	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	tok, exp, err := mgr.Issue(identity.Principal{ID: 42, Username: "alice"}, 15*time.Minute, now)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !exp.Equal(now.Add(15 * time.Minute)) {
		t.Fatalf("exp=%v", exp)
	}

	claims, err := mgr.Verify(tok, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.PrincipalID != 42 || claims.Username != "alice" || claims.Issuer != "parley" {
		t.Fatalf("claims mismatch: %+v", claims)
	}

	if _, err := mgr.Verify(tok, exp); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected expiry failure at exp, got %v", err)
	}
}

func TestJWTRS256_PayloadShape(t *testing.T) {
	mgr, err := NewJWTRS256Manager(DefaultConfig(), rsaTestKey(t), nil)
	if err != nil {
		t.Fatalf("NewJWTRS256Manager: %v", err)
	}
	tok, _, err := mgr.Issue(identity.Principal{ID: 7, Username: "bob"}, time.Minute, time.Now())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	parsed, _, err := jwt.NewParser().ParseUnverified(tok, jwt.MapClaims{})
	if err != nil {
		t.Fatalf("ParseUnverified: %v", err)
	}
	mc := parsed.Claims.(jwt.MapClaims)
	if mc["sub"] != "7" {
		t.Fatalf("sub=%v", mc["sub"])
	}
	user, ok := mc["user"].(map[string]any)
	if !ok || user["id"] != float64(7) || user["username"] != "bob" {
		t.Fatalf("user claim=%v", mc["user"])
	}
	if parsed.Header["alg"] != "RS256" {
		t.Fatalf("alg header=%v", parsed.Header["alg"])
	}
}

func TestJWTRS256_RejectsForeignTokens(t *testing.T) {
	cfg := DefaultConfig()
	mgr, err := NewJWTRS256Manager(cfg, rsaTestKey(t), nil)
	if err != nil {
		t.Fatalf("NewJWTRS256Manager: %v", err)
	}
	now := time.Now()

	claims := accessJWTClaims{
		User: accessUser{ID: 42, Username: "alice"},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "42",
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}

	hs, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("shared-secret-shared-secret-1234"))
	if err != nil {
		t.Fatalf("sign HS256: %v", err)
	}
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	foreign, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(other)
	if err != nil {
		t.Fatalf("sign foreign: %v", err)
	}

	good, _, err := mgr.Issue(identity.Principal{ID: 42}, time.Hour, now)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	parts := strings.Split(good, ".")
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	for name, tok := range map[string]string{
		"hs256":    hs,
		"none":     none,
		"foreign":  foreign,
		"tampered": tampered,
		"garbage":  "not.a.jwt",
	} {
		if _, err := mgr.Verify(tok, now); !errors.Is(err, ErrInvalidSignature) {
			t.Fatalf("%s: expected ErrInvalidSignature, got %v", name, err)
		}
	}
}

func TestPasetoV4_IssueAndVerify(t *testing.T) {
	secret := paseto.NewV4AsymmetricSecretKey()
	cfg := DefaultConfig()
	cfg.Format = FormatPaseto
	cfg.PasetoV4SecretKeyHex = secret.ExportHex()

	mgr, err := NewAccessTokenManager(cfg)
	if err != nil {
		t.Fatalf("NewAccessTokenManager: %v", err)
	}

	now := time.Now().UTC()
	tok, exp, err := mgr.Issue(identity.Principal{ID: 9, Username: "carol"}, 10*time.Minute, now)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claims, err := mgr.Verify(tok, now.Add(time.Second))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.PrincipalID != 9 || claims.Username != "carol" {
		t.Fatalf("claims mismatch: %+v", claims)
	}
	if _, err := mgr.Verify(tok, exp.Add(time.Second)); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected expiry failure, got %v", err)
	}

	otherCfg := cfg
	otherCfg.PasetoV4SecretKeyHex = paseto.NewV4AsymmetricSecretKey().ExportHex()
	other, err := NewPasetoV4PublicManager(otherCfg)
	if err != nil {
		t.Fatalf("NewPasetoV4PublicManager: %v", err)
	}
	if _, err := other.Verify(tok, now); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected foreign key failure, got %v", err)
	}
}

func TestLoadRSAKeys(t *testing.T) {
	key := rsaTestKey(t)
	dir := t.TempDir()

	privPath := filepath.Join(dir, "jwt_private.key")
	pubPath := filepath.Join(dir, "jwt_public.key")

	privPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("MarshalPKIXPublicKey: %v", err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})

	if err := os.WriteFile(privPath, privPEM, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(pubPath, pubPEM, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	priv, pub, err := LoadRSAKeys(privPath, pubPath)
	if err != nil {
		t.Fatalf("LoadRSAKeys: %v", err)
	}
	if !priv.Equal(key) || !pub.Equal(&key.PublicKey) {
		t.Fatalf("loaded keys do not match")
	}

	if _, _, err := LoadRSAKeys(filepath.Join(dir, "missing.key"), ""); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig for missing key, got %v", err)
	}

	other, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	otherDER, err := x509.MarshalPKIXPublicKey(&other.PublicKey)
	if err != nil {
		t.Fatalf("MarshalPKIXPublicKey: %v", err)
	}
	mismatch := filepath.Join(dir, "other_public.key")
	if err := os.WriteFile(mismatch, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: otherDER}), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, err := LoadRSAKeys(privPath, mismatch); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig for mismatched pair, got %v", err)
	}
}
