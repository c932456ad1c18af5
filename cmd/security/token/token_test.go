package token

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestNewOpaque_Format(t *testing.T) {
	v, err := NewOpaque(42, 0)
	if err != nil {
		t.Fatalf("NewOpaque: %v", err)
	}

	prefix, suffix, ok := strings.Cut(v, "_")
	if !ok {
		t.Fatalf("missing separator: %q", v)
	}
	if prefix != base64.StdEncoding.EncodeToString([]byte("42")) {
		t.Fatalf("prefix=%q", prefix)
	}
	if len(suffix) != 2*DefaultBytes {
		t.Fatalf("suffix len=%d want %d", len(suffix), 2*DefaultBytes)
	}

	other, err := NewOpaque(42, 0)
	if err != nil {
		t.Fatalf("NewOpaque: %v", err)
	}
	if Equal(v, other) {
		t.Fatalf("two credentials must differ")
	}
}

func TestPrincipalOf(t *testing.T) {
	v, err := NewOpaque(9001, 16)
	if err != nil {
		t.Fatalf("NewOpaque: %v", err)
	}
	id, err := PrincipalOf(v)
	if err != nil || id != 9001 {
		t.Fatalf("PrincipalOf=%d,%v", id, err)
	}

	bad := []string{
		"",
		"no-separator",
		"_abcd",
		"NDI=_",
		"!!!_abcd",
		base64.StdEncoding.EncodeToString([]byte("abc")) + "_ff",
		base64.StdEncoding.EncodeToString([]byte("-4")) + "_ff",
		strings.Repeat("a", maxLen+1),
	}
	for _, in := range bad {
		if _, err := PrincipalOf(in); err != ErrMalformed {
			t.Fatalf("PrincipalOf(%q) err=%v want ErrMalformed", in, err)
		}
	}
}

func TestEqual(t *testing.T) {
	if !Equal("abc", "abc") {
		t.Fatalf("expected equal")
	}
	if Equal("abc", "abd") || Equal("abc", "abcd") || Equal("abc", "") {
		t.Fatalf("expected not equal")
	}
}
