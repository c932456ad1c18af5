package v1

import (
	"encoding/json"
	"testing"
)

func TestDecodeInbound_PrefersContent(t *testing.T) {
	in, err := DecodeInbound([]byte(`{"type":"message","content":{"content":"hi"},"message":"old"}`))
	if err != nil {
		t.Fatalf("DecodeInbound: %v", err)
	}
	if string(in.Body()) != `{"content":"hi"}` {
		t.Fatalf("body=%s", in.Body())
	}

	in, err = DecodeInbound([]byte(`{"type":"message","message":"legacy"}`))
	if err != nil {
		t.Fatalf("DecodeInbound: %v", err)
	}
	if string(in.Body()) != `"legacy"` {
		t.Fatalf("legacy body=%s", in.Body())
	}
}

func TestDecodeInbound_Rejects(t *testing.T) {
	if _, err := DecodeInbound([]byte(`{"token":"x"}`)); err != ErrEmptyType {
		t.Fatalf("expected ErrEmptyType, got %v", err)
	}
	if _, err := DecodeInbound([]byte(`not json`)); err == nil {
		t.Fatalf("expected json error")
	}
}

func TestErrorEnvelopeShape(t *testing.T) {
	b, err := json.Marshal(Error(TextNotAuthenticated))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"type":"error","content":"not authenticated","isValid":false}`
	if string(b) != want {
		t.Fatalf("got %s want %s", b, want)
	}

	env := Info(TextConnectionEstablished)
	if s, ok := env.ContentText(); !ok || s != TextConnectionEstablished || !env.IsValid {
		t.Fatalf("info envelope mismatch: %+v", env)
	}
}
