package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	v1 "parley/shared/contracts/realtime/v1"
)

// transport is the subset of *websocket.Conn a Conn drives.
type transport interface {
	Read(ctx context.Context) (websocket.MessageType, []byte, error)
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error
	Ping(ctx context.Context) error
	Close(code websocket.StatusCode, reason string) error
	CloseNow() error
}

var _ transport = (*websocket.Conn)(nil)

// Conn is one accepted realtime connection.
//
// Frames go through a bounded queue drained by a single writer goroutine.
// Enqueue never blocks. Close and Terminate share one sync.Once so a
// connection is shut down exactly once regardless of who gets there first.
type Conn struct {
	ID string

	// UpgradePrincipal is the principal whose realtime credential admitted the upgrade.
	UpgradePrincipal int64

	Route  string
	Params Params

	tr           transport
	send         chan v1.Envelope
	done         chan struct{}
	writerDone   chan struct{}
	writeTimeout time.Duration
	log          *slog.Logger

	closeOnce   sync.Once
	closeCode   websocket.StatusCode
	closeReason string
	graceful    bool

	alive         atomic.Bool
	authenticated atomic.Bool
	principal     atomic.Int64
}

func newConn(id string, upgradePrincipal int64, m RouteMatch, tr transport, cfg Config, log *slog.Logger) *Conn {
	if log == nil {
		log = slog.Default()
	}
	c := &Conn{
		ID:               id,
		UpgradePrincipal: upgradePrincipal,
		Route:            m.Pattern,
		Params:           m.Params,
		tr:               tr,
		send:             make(chan v1.Envelope, cfg.SendQueueSize),
		done:             make(chan struct{}),
		writerDone:       make(chan struct{}),
		writeTimeout:     cfg.WriteTimeout,
		log:              log.With("conn_id", id),
	}
	c.alive.Store(true)
	return c
}

// Authenticated reports whether the in-band handshake succeeded.
func (c *Conn) Authenticated() bool { return c.authenticated.Load() }

// Principal is the verified principal, or 0 before authentication.
func (c *Conn) Principal() int64 { return c.principal.Load() }

func (c *Conn) markAuthenticated(principalID int64) {
	c.principal.Store(principalID)
	c.authenticated.Store(true)
}

// Done is closed once the connection is shutting down.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Enqueue queues env for the writer. It returns false if the queue is full
// or the connection is closing.
func (c *Conn) Enqueue(env v1.Envelope) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case <-c.done:
		return false
	case c.send <- env:
		return true
	default:
		return false
	}
}

// Close flushes queued frames then runs the close handshake with code.
// It returns false if the connection was already closing.
func (c *Conn) Close(code websocket.StatusCode, reason string) bool {
	did := false
	c.closeOnce.Do(func() {
		did = true
		c.closeCode, c.closeReason, c.graceful = code, reason, true
		close(c.done)
	})
	return did
}

// Fail sends a single error frame and closes the connection after it.
func (c *Conn) Fail(text string, code websocket.StatusCode) bool {
	c.Enqueue(v1.Error(text))
	return c.Close(code, text)
}

// Terminate drops the connection without a close handshake.
func (c *Conn) Terminate() bool {
	did := false
	c.closeOnce.Do(func() {
		did = true
		close(c.done)
		_ = c.tr.CloseNow()
	})
	return did
}

// Ping sends a protocol ping and waits for the pong. A reader must be running.
func (c *Conn) Ping(ctx context.Context) error { return c.tr.Ping(ctx) }

func (c *Conn) read(ctx context.Context) ([]byte, error) {
	mt, data, err := c.tr.Read(ctx)
	if err != nil {
		return nil, err
	}
	if mt != websocket.MessageText && mt != websocket.MessageBinary {
		return nil, errors.New("unsupported message type")
	}
	return data, nil
}

// startWriter runs the writer goroutine. waitWriter blocks until it exits.
func (c *Conn) startWriter() {
	go func() {
		defer close(c.writerDone)
		c.writeLoop()
	}()
}

func (c *Conn) waitWriter(grace time.Duration) bool {
	select {
	case <-c.writerDone:
		return true
	case <-time.After(grace):
		return false
	}
}

func (c *Conn) writeLoop() {
	for {
		select {
		case <-c.done:
			if c.graceful {
				c.flush()
				_ = c.tr.Close(c.closeCode, c.closeReason)
			}
			return
		case env := <-c.send:
			if err := c.write(env); err != nil {
				c.log.Info("ws.write.fail", "close_status", websocket.CloseStatus(err), "err", err)
				c.Terminate()
				return
			}
		}
	}
}

// flush writes whatever is already queued, bounded by closeGrace.
func (c *Conn) flush() {
	deadline := time.Now().Add(closeGrace)
	for time.Now().Before(deadline) {
		select {
		case env := <-c.send:
			if err := c.write(env); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Conn) write(env v1.Envelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.writeTimeout)
	defer cancel()
	return c.tr.Write(ctx, websocket.MessageText, b)
}

type readErrKind uint8

const (
	readErrUnknown readErrKind = iota
	readErrClose
	readErrCtxDone
	readErrConnClosed
)

func classifyReadErr(err error) readErrKind {
	if websocket.CloseStatus(err) != -1 {
		return readErrClose
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return readErrCtxDone
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
		return readErrConnClosed
	}
	return readErrUnknown
}
