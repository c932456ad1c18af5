package authapi

import (
	"net/http"
	"testing"
	"time"
)

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	cfg := LoadConfigFromEnv()
	if cfg.RefreshCookieName != "refreshToken" || cfg.CookiePath != "/auth" {
		t.Fatalf("cookie defaults=%q %q", cfg.RefreshCookieName, cfg.CookiePath)
	}
	if !cfg.CookieSecure || cfg.CookieSameSite != http.SameSiteStrictMode {
		t.Fatalf("expected secure strict cookie by default")
	}
	if cfg.LoginIPWindow != 5*time.Minute || cfg.MaxBodyBytes != 1<<20 {
		t.Fatalf("throttle defaults=%v %d", cfg.LoginIPWindow, cfg.MaxBodyBytes)
	}
}

func TestLoadConfigFromEnv_CookieGuardrails(t *testing.T) {
	t.Setenv("PARLEY_AUTH_REFRESH_COOKIE_NAME", "rt")
	t.Setenv("PARLEY_AUTH_COOKIE_SAMESITE", "none")
	t.Setenv("PARLEY_AUTH_COOKIE_SECURE", "false")

	cfg := LoadConfigFromEnv()

	if cfg.RefreshCookieName != "rt" {
		t.Fatalf("cookie name=%q", cfg.RefreshCookieName)
	}
	if cfg.CookieSameSite != http.SameSiteNoneMode {
		t.Fatalf("expected SameSite=None, got %v", cfg.CookieSameSite)
	}
	if !cfg.CookieSecure {
		t.Fatalf("SameSite=None requires Secure=true")
	}
}

func TestParseSameSite(t *testing.T) {
	tests := []struct {
		in   string
		want http.SameSite
	}{
		{in: "strict", want: http.SameSiteStrictMode},
		{in: "lax", want: http.SameSiteLaxMode},
		{in: "none", want: http.SameSiteNoneMode},
		{in: "default", want: http.SameSiteDefaultMode},
		{in: "unknown", want: http.SameSiteLaxMode},
	}

	for _, tc := range tests {
		got := parseSameSite(tc.in)
		if got != tc.want {
			t.Fatalf("parseSameSite(%q)=%v, want %v", tc.in, got, tc.want)
		}
	}
}
