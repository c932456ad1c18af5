package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	v1 "parley/shared/contracts/realtime/v1"
)

func TestNormalizeBody(t *testing.T) {
	now := time.Date(2025, 2, 22, 10, 0, 0, 0, time.UTC)

	t.Run("string passes through", func(t *testing.T) {
		got, err := normalizeBody(json.RawMessage(`"hi"`), 7, 1, now)
		if err != nil || string(got) != `"hi"` {
			t.Fatalf("got %s, %v", got, err)
		}
	})

	t.Run("object is completed", func(t *testing.T) {
		got, err := normalizeBody(json.RawMessage(`{"content":"hi"}`), 7, 1, now)
		if err != nil {
			t.Fatalf("normalize: %v", err)
		}
		var m v1.MessageContent
		if err := json.Unmarshal(got, &m); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if m.ConversationID != 7 || m.UserID != 1 || !m.CreatedAt.Equal(now) || m.Content != "hi" {
			t.Fatalf("normalized=%+v", m)
		}
	})

	bad := []string{
		``,
		`null`,
		`""`,
		`"   "`,
		`42`,
		`[1]`,
		`{"content":""}`,
		`{"content":"hi","conversationId":8}`,
		`{"content":"hi","userId":2}`,
		`"` + strings.Repeat("a", maxMessageChars+1) + `"`,
	}
	for _, in := range bad {
		if _, err := normalizeBody(json.RawMessage(in), 7, 1, now); !errors.Is(err, ErrProtocolViolation) {
			t.Fatalf("normalizeBody(%.20q) err=%v want ErrProtocolViolation", in, err)
		}
	}
}

func TestNewConnHandler_RequiresCollaborators(t *testing.T) {
	if _, err := NewConnHandler("x", HandlerOptions{Members: NewInMemoryMembershipStore()}); err == nil {
		t.Fatalf("expected error for nil verifier")
	}
	if _, err := NewConnHandler("x", HandlerOptions{Verifier: fakeVerifier{}}); err == nil {
		t.Fatalf("expected error for nil membership store")
	}
}

func TestHandler_HandshakeFailures(t *testing.T) {
	env := newGatewayEnv(t)

	tests := []struct {
		name  string
		frame string
		text  string
	}{
		{"message before auth", `{"type":"message","content":"hi"}`, v1.TextNotAuthenticated},
		{"bad access token", `{"type":"authenticate","token":"forged"}`, v1.TextAuthFailed},
		{"other principal's token", `{"type":"authenticate","token":"at-2"}`, v1.TextAuthFailed},
		{"malformed json", `{"type":`, v1.TextInvalidMessage},
		{"missing type", `{"token":"at-1"}`, v1.TextInvalidMessage},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			conn := env.connect(t, 1, 7)
			writeRaw(t, conn, []byte(tc.frame))
			expectFrame(t, readFrame(t, conn), v1.TypeError, tc.text, false)
			expectClosed(t, conn)
		})
	}

	waitFor(t, "deregistration", func() bool {
		return env.handler.Len() == 0 && env.monitor.Len() == 0
	})
}

func TestHandler_AuthenticatedProtocolViolations(t *testing.T) {
	env := newGatewayEnv(t)

	tests := []struct {
		name  string
		frame string
		text  string
	}{
		{"second authenticate", `{"type":"authenticate","token":"at-1"}`, v1.TextUnknownType},
		{"unknown type", `{"type":"typing"}`, v1.TextUnknownType},
		{"empty body", `{"type":"message"}`, v1.TextInvalidMessage},
		{"foreign conversation id", `{"type":"message","content":{"content":"hi","conversationId":9}}`, v1.TextInvalidMessage},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			conn := env.connect(t, 1, 7)
			env.authenticate(t, conn, "at-1")
			writeRaw(t, conn, []byte(tc.frame))
			expectFrame(t, readFrame(t, conn), v1.TypeError, tc.text, false)
			expectClosed(t, conn)
		})
	}
}

func TestHandler_BroadcastToConversationMembers(t *testing.T) {
	env := newGatewayEnv(t)

	alice := env.connect(t, 1, 7)
	env.authenticate(t, alice, "at-1")
	bob := env.connect(t, 2, 7)
	env.authenticate(t, bob, "at-2")
	carol := env.connect(t, 3, 7)
	env.authenticate(t, carol, "at-3")
	waitFor(t, "three authenticated", func() bool { return env.handler.Authenticated() == 3 })

	writeJSON(t, alice, map[string]any{"type": "message", "content": map[string]any{"content": "hi bob"}})

	for name, conn := range map[string]*websocket.Conn{"bob": bob, "alice echo": alice} {
		got := readFrame(t, conn)
		if got.Type != v1.TypeMessage || !got.IsValid {
			t.Fatalf("%s frame=%+v", name, got)
		}
		var m v1.MessageContent
		if err := json.Unmarshal(got.Content, &m); err != nil {
			t.Fatalf("%s decode: %v", name, err)
		}
		if m.Content != "hi bob" || m.UserID != 1 || m.ConversationID != 7 {
			t.Fatalf("%s message=%+v", name, m)
		}
	}

	// Legacy clients send the body under "message".
	writeJSON(t, bob, map[string]any{"type": "message", "message": "hey"})
	for _, conn := range []*websocket.Conn{alice, bob} {
		got := readFrame(t, conn)
		if text, _ := got.ContentText(); got.Type != v1.TypeMessage || text != "hey" {
			t.Fatalf("frame=%+v", got)
		}
	}

	// Carol is connected to the route but is not a member of conversation 7.
	writeJSON(t, carol, map[string]any{"type": "message", "content": "let me in"})
	expectFrame(t, readFrame(t, carol), v1.TypeError, v1.TextForbidden, false)
	expectClosed(t, carol)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	if _, b, err := alice.Read(ctx); err == nil {
		t.Fatalf("alice received unexpected frame %s", b)
	}
}

func TestHandler_ConversationNotFound(t *testing.T) {
	env := newGatewayEnv(t)
	conn := env.connect(t, 1, 404)
	env.authenticate(t, conn, "at-1")

	writeJSON(t, conn, map[string]any{"type": "message", "content": "anyone?"})
	expectFrame(t, readFrame(t, conn), v1.TypeError, v1.TextConversationNotFound, false)
	expectClosed(t, conn)
}

func TestHandler_RateLimited(t *testing.T) {
	env := newGatewayEnv(t)
	env.handler.cfg.RateEvents = 2
	env.handler.cfg.RateWindow = time.Minute

	conn := env.connect(t, 2, 9)
	env.authenticate(t, conn, "at-2")
	writeJSON(t, conn, map[string]any{"type": "message", "content": "one"})
	if got := readFrame(t, conn); got.Type != v1.TypeMessage {
		t.Fatalf("echo frame=%+v", got)
	}

	writeJSON(t, conn, map[string]any{"type": "message", "content": "two"})
	expectFrame(t, readFrame(t, conn), v1.TypeError, v1.TextRateLimited, false)
	expectClosed(t, conn)
}

func TestHandler_ClientCloseDeregistersOnce(t *testing.T) {
	env := newGatewayEnv(t)
	conn := env.connect(t, 1, 7)
	env.authenticate(t, conn, "at-1")
	waitFor(t, "registration", func() bool { return env.monitor.Len() == 1 && env.handler.Authenticated() == 1 })

	_ = conn.Close(websocket.StatusNormalClosure, "done")

	waitFor(t, "deregistration", func() bool {
		return env.monitor.Len() == 0 && env.handler.Len() == 0 && env.handler.Authenticated() == 0
	})
}
