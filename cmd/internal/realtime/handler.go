package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/coder/websocket"

	v1 "parley/shared/contracts/realtime/v1"
)

// AccessVerifier checks an access credential and returns its principal.
type AccessVerifier interface {
	VerifyAccess(token string) (int64, error)
}

type HandlerOptions struct {
	Verifier AccessVerifier
	Members  MembershipStore
	Monitor  *LivenessMonitor
	Config   Config
	Log      *slog.Logger
	Metrics  *Metrics
	Now      func() time.Time
}

// ConnHandler runs the per-connection protocol for one route: the
// authenticate handshake, then message broadcast to conversation members.
type ConnHandler struct {
	name     string
	verifier AccessVerifier
	monitor  *LivenessMonitor
	cfg      Config
	log      *slog.Logger
	metrics  *Metrics
	now      func() time.Time

	conns       *Registry[*Conn]
	routable    *Registry[*Conn]
	broadcaster *Broadcaster
}

func NewConnHandler(name string, opts HandlerOptions) (*ConnHandler, error) {
	if opts.Verifier == nil {
		return nil, errors.New("realtime: nil access verifier")
	}
	if opts.Members == nil {
		return nil, errors.New("realtime: nil membership store")
	}
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	h := &ConnHandler{
		name:     name,
		verifier: opts.Verifier,
		monitor:  opts.Monitor,
		cfg:      opts.Config.normalized(),
		log:      log.With("handler", name),
		metrics:  opts.Metrics,
		now:      now,
		conns:    NewRegistry[*Conn](),
		routable: NewRegistry[*Conn](),
	}
	h.broadcaster = NewBroadcaster(opts.Members, h.routable, h.log, opts.Metrics)
	return h, nil
}

func (h *ConnHandler) Name() string { return h.name }

// Len is the number of connections served, authenticated or not.
func (h *ConnHandler) Len() int { return h.conns.Len() }

// Authenticated is the number of connections that completed the handshake.
func (h *ConnHandler) Authenticated() int { return h.routable.Len() }

// Serve runs the connection until it closes. It is the only place that
// removes c from the handler sets and the liveness monitor.
func (h *ConnHandler) Serve(ctx context.Context, c *Conn) {
	h.conns.Add(c.ID, c)
	c.startWriter()

	defer func() {
		h.routable.Remove(c.ID)
		h.conns.Remove(c.ID)
		if h.monitor != nil {
			h.monitor.Deregister(c)
		}
		c.Close(websocket.StatusNormalClosure, "bye")
		if !c.waitWriter(closeGrace) {
			c.log.Debug("ws.writer.slow_close")
		}
	}()

	c.Enqueue(v1.Info(v1.TextConnectionEstablished))

	rl := NewRateLimiter(h.cfg.RateEvents, h.cfg.RateWindow)
	for {
		data, err := c.read(ctx)
		if err != nil {
			h.logReadErr(c, err)
			return
		}

		if !rl.Allow(h.now()) {
			c.log.Info("ws.rate_limited", "principal_id", c.Principal())
			c.Fail(v1.TextRateLimited, websocket.StatusPolicyViolation)
			return
		}

		in, err := v1.DecodeInbound(data)
		if err != nil {
			c.log.Info("ws.protocol.invalid", "err", err)
			c.Fail(v1.TextInvalidMessage, websocket.StatusPolicyViolation)
			return
		}

		if !c.Authenticated() {
			if !h.handshake(c, in) {
				return
			}
			continue
		}

		if in.Type != v1.TypeMessage {
			c.log.Info("ws.protocol.unknown_type", "type", in.Type)
			c.Fail(v1.TextUnknownType, websocket.StatusPolicyViolation)
			return
		}
		if err := h.onMessage(ctx, c, in); err != nil {
			h.failPipeline(c, err)
			return
		}
	}
}

// handshake admits c into the routable set or fails it.
func (h *ConnHandler) handshake(c *Conn, in v1.Inbound) bool {
	if in.Type != v1.TypeAuthenticate {
		h.metrics.handshake("not_authenticated")
		c.log.Info("ws.auth.required", "type", in.Type)
		c.Fail(v1.TextNotAuthenticated, websocket.StatusPolicyViolation)
		return false
	}

	pid, err := h.verifier.VerifyAccess(in.Token)
	if err == nil && pid != c.UpgradePrincipal {
		err = fmt.Errorf("%w: principal %d does not match upgrade principal %d", ErrUnauthorized, pid, c.UpgradePrincipal)
	}
	if err != nil {
		h.metrics.handshake("failed")
		c.log.Info("ws.auth.fail", "upgrade_principal_id", c.UpgradePrincipal, "err", err)
		c.Fail(v1.TextAuthFailed, websocket.StatusPolicyViolation)
		return false
	}

	c.markAuthenticated(pid)
	c.Enqueue(v1.Text(v1.TypeAuthenticate, v1.TextAuthSucceeded, true))
	h.routable.Add(c.ID, c)

	h.metrics.handshake("ok")
	c.log.Info("ws.auth.ok", "principal_id", pid)
	return true
}

func (h *ConnHandler) onMessage(ctx context.Context, c *Conn, in v1.Inbound) error {
	convID, ok := c.Params.Int(h.cfg.ConversationParam)
	if !ok {
		return ErrConversationNotFound
	}
	body, err := normalizeBody(in.Body(), convID, c.Principal(), h.now())
	if err != nil {
		return err
	}
	n, err := h.broadcaster.Deliver(ctx, c, convID, body)
	if err != nil {
		return err
	}
	c.log.Debug("ws.message.delivered", "conversation_id", convID, "recipients", n)
	return nil
}

func (h *ConnHandler) failPipeline(c *Conn, err error) {
	switch {
	case errors.Is(err, ErrProtocolViolation):
		c.log.Info("ws.protocol.invalid", "err", err)
		c.Fail(v1.TextInvalidMessage, websocket.StatusPolicyViolation)
	case errors.Is(err, ErrForbidden):
		c.log.Info("ws.message.forbidden", "principal_id", c.Principal())
		c.Fail(v1.TextForbidden, websocket.StatusPolicyViolation)
	case errors.Is(err, ErrConversationNotFound):
		c.log.Info("ws.message.conversation_not_found", "params", c.Params)
		c.Fail(v1.TextConversationNotFound, websocket.StatusPolicyViolation)
	default:
		c.log.Error("ws.message.fail", "err", err)
		c.Fail(v1.TextInternal, websocket.StatusInternalError)
	}
}

func (h *ConnHandler) logReadErr(c *Conn, err error) {
	switch classifyReadErr(err) {
	case readErrClose:
		c.log.Debug("ws.peer.closed", "close_status", websocket.CloseStatus(err))
	case readErrCtxDone, readErrConnClosed:
		c.log.Debug("ws.read.closed", "err", err)
	default:
		c.log.Info("ws.read.fail", "err", err)
	}
}

// normalizeBody accepts a JSON string or a MessageContent object. Objects get
// their conversation, author and timestamp filled in; values that contradict
// the connection are rejected.
func normalizeBody(body json.RawMessage, conversationID, principalID int64, now time.Time) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || trimmed == "null" {
		return nil, fmt.Errorf("%w: empty body", ErrProtocolViolation)
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(body, &s); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProtocolViolation, err)
		}
		if err := checkText(s); err != nil {
			return nil, err
		}
		return body, nil

	case '{':
		var m v1.MessageContent
		if err := json.Unmarshal(body, &m); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProtocolViolation, err)
		}
		if err := checkText(m.Content); err != nil {
			return nil, err
		}
		if m.ConversationID == 0 {
			m.ConversationID = conversationID
		} else if m.ConversationID != conversationID {
			return nil, fmt.Errorf("%w: conversation id mismatch", ErrProtocolViolation)
		}
		if m.UserID == 0 {
			m.UserID = principalID
		} else if m.UserID != principalID {
			return nil, fmt.Errorf("%w: author mismatch", ErrProtocolViolation)
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		b, err := json.Marshal(m)
		if err != nil {
			return nil, err
		}
		return b, nil

	default:
		return nil, fmt.Errorf("%w: body must be a string or object", ErrProtocolViolation)
	}
}

func checkText(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: empty content", ErrProtocolViolation)
	}
	if utf8.RuneCountInString(s) > maxMessageChars {
		return fmt.Errorf("%w: content too long", ErrProtocolViolation)
	}
	return nil
}
