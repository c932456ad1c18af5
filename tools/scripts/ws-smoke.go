// Package main provides a CI-friendly WebSocket smoke test for parley realtime.
//
// It validates:
//   - signup/login over HTTP for two principals
//   - upgrade admission with the realtime credential
//   - authenticate handshake with the access credential
//   - message fanout to the other member and echo to the sender
//   - rejection of a message sent before authenticating
//
// Both principals must be members of -conv (see PARLEY_DEV_MEMBERSHIPS).
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/spf13/pflag"

	v1 "parley/shared/contracts/realtime/v1"
)

const (
	defaultSubprotocol = "parley.realtime.v1"
	maxReadBytes       = 1 << 20 // 1MiB
)

type session struct {
	principalID    int64
	accessToken    string
	websocketToken string
}

type smokeClient struct {
	name string
	conn *websocket.Conn

	inbox chan v1.Envelope
	errCh chan error
}

func main() {
	var (
		baseURL  = pflag.String("base", "http://127.0.0.1:8080", "HTTP base URL")
		origin   = pflag.String("origin", "http://localhost", "Origin header to send (browser-like WS handshake)")
		convID   = pflag.Int64("conv", 7, "Conversation ID both users belong to")
		userA    = pflag.String("user-a", "smoke_a", "First username")
		userB    = pflag.String("user-b", "smoke_b", "Second username")
		password = pflag.String("password", "smoke test password 42", "Password for both users")
		signup   = pflag.Bool("signup", false, "Sign the users up instead of logging in")
		text     = pflag.String("text", "hello parley 👋", "Message text to send")
		timeout  = pflag.Duration("timeout", 7*time.Second, "Per-step timeout")
		verbose  = pflag.BoolP("verbose", "v", false, "Verbose output")
	)
	pflag.Parse()

	if err := validateBaseURL(*baseURL); err != nil {
		fatalf("invalid --base: %v", err)
	}
	if err := validateOrigin(*origin); err != nil {
		fatalf("invalid --origin: %v", err)
	}

	root := context.Background()
	hc := &http.Client{Timeout: *timeout}

	sa := mustSession(root, hc, *baseURL, *userA, *password, *signup)
	sb := mustSession(root, hc, *baseURL, *userB, *password, *signup)
	if *verbose {
		fmt.Printf("sessions: A=%d B=%d\n", sa.principalID, sb.principalID)
	}

	wsURL := conversationURL(*baseURL, *convID)

	a := mustConnect(root, "A", wsURL, *origin, sa, *timeout)
	defer closeWS(a.conn)
	b := mustConnect(root, "B", wsURL, *origin, sb, *timeout)
	defer closeWS(b.conn)

	a.mustAuthenticate(root, sa.accessToken, *timeout)
	b.mustAuthenticate(root, sb.accessToken, *timeout)

	mustWriteWithTimeout(root, a.conn, map[string]any{
		"type":    v1.TypeMessage,
		"content": map[string]any{"content": *text},
	}, *timeout)

	got := b.mustReadUntilType(root, v1.TypeMessage, *timeout)
	mustMessage(b.name, got, sa.principalID, *convID, *text)
	echo := a.mustReadUntilType(root, v1.TypeMessage, *timeout)
	mustMessage(a.name, echo, sa.principalID, *convID, *text)

	// A fresh connection that skips the handshake must be refused and closed.
	sa2 := mustSession(root, hc, *baseURL, *userA, *password, false)
	c := mustConnect(root, "C", wsURL, *origin, sa2, *timeout)
	mustWriteWithTimeout(root, c.conn, map[string]string{"type": v1.TypeMessage, "content": "sneaky"}, *timeout)
	env := c.mustReadUntilType(root, v1.TypeError, *timeout)
	if s, _ := env.ContentText(); s != v1.TextNotAuthenticated {
		fatalf("unauthenticated send: got %q want %q", s, v1.TextNotAuthenticated)
	}
	c.mustClosed(root, *timeout)

	fmt.Printf("OK: A=%d B=%d conv_id=%d\n", sa.principalID, sb.principalID, *convID)
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("missing host")
	}
	return nil
}

func validateOrigin(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("origin must be http/https, got: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("origin missing host")
	}
	return nil
}

func conversationURL(base string, convID int64) string {
	u, _ := url.Parse(base)
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = fmt.Sprintf("/conversations/%d", convID)
	return u.String()
}

func mustSession(parent context.Context, hc *http.Client, base, username, password string, signup bool) session {
	path := "/auth/login"
	want := http.StatusOK
	if signup {
		path = "/auth/signup"
		want = http.StatusCreated
	}

	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	req, err := http.NewRequestWithContext(parent, http.MethodPost, strings.TrimRight(base, "/")+path, bytes.NewReader(body))
	if err != nil {
		fatalf("build %s request: %v", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		fatalf("%s (%s): %v", path, username, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != want {
		fatalf("%s (%s): status %d", path, username, resp.StatusCode)
	}

	var out struct {
		User struct {
			ID int64 `json:"id"`
		} `json:"user"`
		AccessToken struct {
			Token string `json:"token"`
		} `json:"accessToken"`
		WebsocketToken struct {
			Token string `json:"token"`
		} `json:"websocketToken"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		fatalf("decode %s (%s): %v", path, username, err)
	}
	if out.User.ID <= 0 || out.AccessToken.Token == "" || out.WebsocketToken.Token == "" {
		fatalf("%s (%s): incomplete session response", path, username)
	}
	return session{
		principalID:    out.User.ID,
		accessToken:    out.AccessToken.Token,
		websocketToken: out.WebsocketToken.Token,
	}
}

func mustConnect(parent context.Context, name, wsURL, origin string, s session, stepTimeout time.Duration) *smokeClient {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	u, _ := url.Parse(wsURL)
	q := u.Query()
	q.Set("token", s.websocketToken)
	q.Set("principalId", fmt.Sprint(s.principalID))
	u.RawQuery = q.Encode()

	h := http.Header{}
	if strings.TrimSpace(origin) != "" {
		h.Set("Origin", origin)
	}

	conn, resp, err := websocket.Dial(ctx, u.String(), &websocket.DialOptions{
		Subprotocols: []string{defaultSubprotocol},
		HTTPHeader:   h,
	})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		fatalf("connect %s: %v", name, err)
	}

	assertSubprotocol(resp, defaultSubprotocol)

	conn.SetReadLimit(maxReadBytes)

	c := &smokeClient{
		name:  name,
		conn:  conn,
		inbox: make(chan v1.Envelope, 512),
		errCh: make(chan error, 1),
	}
	c.startReadLoop()

	env := c.mustReadUntilType(parent, v1.TypeInfo, stepTimeout)
	if s, _ := env.ContentText(); s != v1.TextConnectionEstablished {
		fatalf("greeting (%s): got %q", name, s)
	}
	return c
}

func assertSubprotocol(resp *http.Response, want string) {
	if resp == nil {
		return
	}
	got := strings.TrimSpace(resp.Header.Get("Sec-WebSocket-Protocol"))
	if got == "" {
		return
	}
	if got != want {
		fatalf("subprotocol mismatch: got=%q want=%q", got, want)
	}
}

func (c *smokeClient) startReadLoop() {
	go func() {
		defer close(c.inbox)

		for {
			mt, data, err := c.conn.Read(context.Background())
			if err != nil {
				select {
				case c.errCh <- err:
				default:
				}
				return
			}

			if mt != websocket.MessageText {
				select {
				case c.errCh <- fmt.Errorf("unsupported message type: %v", mt):
				default:
				}
				return
			}

			var env v1.Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				select {
				case c.errCh <- fmt.Errorf("bad json: %w", err):
				default:
				}
				return
			}

			select {
			case c.inbox <- env:
			default:
				select {
				case c.errCh <- errors.New("inbox overflow: consumer too slow"):
				default:
				}
				return
			}
		}
	}()
}

func (c *smokeClient) mustAuthenticate(parent context.Context, accessToken string, stepTimeout time.Duration) {
	mustWriteWithTimeout(parent, c.conn, map[string]string{"type": v1.TypeAuthenticate, "token": accessToken}, stepTimeout)

	env := c.mustReadUntilType(parent, v1.TypeAuthenticate, stepTimeout)
	if s, _ := env.ContentText(); s != v1.TextAuthSucceeded || !env.IsValid {
		fatalf("authenticate (%s): got %q valid=%v", c.name, s, env.IsValid)
	}
}

func mustMessage(name string, env v1.Envelope, senderID, convID int64, text string) {
	var mc v1.MessageContent
	if err := json.Unmarshal(env.Content, &mc); err != nil {
		fatalf("unmarshal message content (%s): %v", name, err)
	}
	if mc.UserID != senderID {
		fatalf("message userId mismatch (%s): got=%d want=%d", name, mc.UserID, senderID)
	}
	if mc.ConversationID != convID {
		fatalf("message conversationId mismatch (%s): got=%d want=%d", name, mc.ConversationID, convID)
	}
	if mc.Content != text {
		fatalf("message content mismatch (%s): got=%q want=%q", name, mc.Content, text)
	}
	if mc.CreatedAt.IsZero() {
		fatalf("message createdAt missing (%s)", name)
	}
}

func (c *smokeClient) mustReadUntilType(parent context.Context, wantType string, stepTimeout time.Duration) v1.Envelope {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			fatalf("timeout waiting for %q (%s): %v", wantType, c.name, ctx.Err())
		case err := <-c.errCh:
			if err == nil {
				fatalf("connection closed while waiting for %q (%s)", wantType, c.name)
			}
			fatalf("connection error while waiting for %q (%s): %v", wantType, c.name, err)
		case env, ok := <-c.inbox:
			if !ok {
				fatalf("connection closed while waiting for %q (%s)", wantType, c.name)
			}
			if env.Type == wantType {
				return env
			}
			if env.Type == v1.TypeError {
				s, _ := env.ContentText()
				fatalf("server error (%s): %q", c.name, s)
			}
			fatalf("unexpected envelope type (%s): got=%q want=%q", c.name, env.Type, wantType)
		}
	}
}

func (c *smokeClient) mustClosed(parent context.Context, stepTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			fatalf("connection not closed by server (%s)", c.name)
		case <-c.errCh:
			return
		case _, ok := <-c.inbox:
			if !ok {
				return
			}
		}
	}
}

func mustWriteWithTimeout(parent context.Context, conn *websocket.Conn, v any, stepTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	b, err := json.Marshal(v)
	if err != nil {
		fatalf("marshal frame: %v", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, b); err != nil {
		fatalf("write failed: %v", err)
	}
}

func closeWS(conn *websocket.Conn) {
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
