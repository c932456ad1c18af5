package realtime

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeVerifier maps access tokens to principals.
type fakeVerifier map[string]int64

func (f fakeVerifier) VerifyAccess(token string) (int64, error) {
	if pid, ok := f[token]; ok {
		return pid, nil
	}
	return 0, ErrUnauthorized
}

// fakeValidator maps principals to their live realtime credential.
type fakeValidator struct {
	mu     sync.Mutex
	tokens map[int64]string
	err    error
}

func (f *fakeValidator) ValidateRealtime(_ context.Context, pid int64, value string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	return f.tokens[pid] == value, nil
}

// fakeTransport records writes and answers pings from a configurable error.
type fakeTransport struct {
	mu       sync.Mutex
	pingErr  error
	pings    int
	writes   [][]byte
	closes   int
	closeNow int
	reads    chan []byte
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{reads: make(chan []byte, 8)}
}

func (f *fakeTransport) Read(ctx context.Context) (websocket.MessageType, []byte, error) {
	select {
	case b, ok := <-f.reads:
		if !ok {
			return 0, nil, io.EOF
		}
		return websocket.MessageText, b, nil
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	}
}

func (f *fakeTransport) Write(_ context.Context, _ websocket.MessageType, p []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, append([]byte(nil), p...))
	return nil
}

func (f *fakeTransport) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pings++
	return f.pingErr
}

func (f *fakeTransport) Close(websocket.StatusCode, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

func (f *fakeTransport) CloseNow() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeNow++
	return nil
}

func (f *fakeTransport) setPingErr(err error) {
	f.mu.Lock()
	f.pingErr = err
	f.mu.Unlock()
}

func (f *fakeTransport) counts() (pings, closes, closeNow int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pings, f.closes, f.closeNow
}

var errNoPong = errors.New("no pong")

func newTestConn(t *testing.T, id string, upgradePrincipal int64, tr transport) *Conn {
	t.Helper()
	return newConn(id, upgradePrincipal, RouteMatch{Pattern: "/conversations/:conversationID", Params: Params{"conversationID": 7}}, tr, DefaultConfig(), discardLogger())
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
