package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/coder/websocket"

	"parley/cmd/identity/ids"
	"parley/cmd/internal/cache"
)

// Subprotocol is negotiated when the client offers it. It is not required.
const Subprotocol = "parley.realtime.v1"

// RealtimeValidator checks a realtime session credential for a principal.
type RealtimeValidator interface {
	ValidateRealtime(ctx context.Context, principalID int64, value string) (bool, error)
}

// Gateway admits upgrade requests and hands accepted connections to the
// matching route handler. Every rejection happens before a Conn exists.
type Gateway struct {
	cfg       Config
	routes    *RouteTable
	validator RealtimeValidator
	monitor   *LivenessMonitor
	log       *slog.Logger
	metrics   *Metrics

	originPatterns []string
}

// NewGateway freezes routes.
func NewGateway(cfg Config, routes *RouteTable, validator RealtimeValidator, monitor *LivenessMonitor, log *slog.Logger, metrics *Metrics) (*Gateway, error) {
	if routes == nil {
		return nil, errors.New("realtime: nil route table")
	}
	if validator == nil {
		return nil, errors.New("realtime: nil realtime validator")
	}
	if monitor == nil {
		return nil, errors.New("realtime: nil liveness monitor")
	}
	if log == nil {
		log = slog.Default()
	}
	cfg = cfg.normalized()
	routes.Freeze()

	return &Gateway{
		cfg:            cfg,
		routes:         routes,
		validator:      validator,
		monitor:        monitor,
		log:            log,
		metrics:        metrics,
		originPatterns: deriveOriginPatternsFromAllowedOrigins(cfg.AllowedOrigins),
	}, nil
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	token := strings.TrimSpace(q.Get("token"))
	rawPID := strings.TrimSpace(q.Get("principalId"))
	if rawPID == "" {
		rawPID = strings.TrimSpace(q.Get("userID"))
	}
	if token == "" || rawPID == "" {
		g.reject(w, r, "missing_credentials", "ws.reject.missing_credentials")
		return
	}
	pid, err := strconv.ParseInt(rawPID, 10, 64)
	if err != nil || pid <= 0 {
		g.reject(w, r, "bad_principal", "ws.reject.bad_principal")
		return
	}

	ok, err := g.validator.ValidateRealtime(r.Context(), pid, token)
	switch {
	case errors.Is(err, cache.ErrStoreUnavailable):
		g.reject(w, r, "store_unavailable", "ws.reject.store_unavailable", "principal_id", pid, "err", err)
		return
	case err != nil:
		g.reject(w, r, "validate_error", "ws.reject.validate_error", "principal_id", pid, "err", err)
		return
	case !ok:
		g.reject(w, r, "invalid_credential", "ws.reject.invalid_credential", "principal_id", pid)
		return
	}

	match, ok := g.routes.Match(r.URL.Path)
	if !ok {
		g.reject(w, r, "route", "ws.reject.route", "principal_id", pid, "err", ErrRouteNotFound)
		return
	}

	if err := g.enforceOrigin(r); err != nil {
		g.metrics.rejected("origin")
		g.log.Info("ws.reject.origin", "err", err, "origin", r.Header.Get("Origin"), "remote", r.RemoteAddr)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	id, err := ids.NewULID(time.Now().UTC())
	if err != nil {
		g.log.Error("ws.conn_id.fail", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:       []string{Subprotocol},
		OriginPatterns:     g.originPatterns,
		InsecureSkipVerify: g.cfg.DevInsecure,
	})
	if err != nil {
		g.log.Error("ws.accept.fail", "err", err, "remote", r.RemoteAddr)
		return
	}
	ws.SetReadLimit(maxFrameBytes)

	c := newConn(id, pid, match, ws, g.cfg, g.log)
	g.monitor.Register(c)
	g.metrics.connOpened(match.Pattern)
	defer g.metrics.connClosed(match.Pattern)

	c.log.Info("ws.accept", "route", match.Pattern, "upgrade_principal_id", pid, "remote", r.RemoteAddr)
	match.Handler.Serve(r.Context(), c)
	c.log.Info("ws.closed", "route", match.Pattern, "principal_id", c.Principal())
}

// reject answers 401 for every admission failure. The reason is only logged.
func (g *Gateway) reject(w http.ResponseWriter, r *http.Request, reason, event string, attrs ...any) {
	g.metrics.rejected(reason)
	attrs = append(attrs, "path", r.URL.Path, "remote", r.RemoteAddr)
	g.log.Info(event, attrs...)

	w.Header().Set("Connection", "close")
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

// ---- origin policy ----

func (g *Gateway) enforceOrigin(r *http.Request) error {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		if g.cfg.OriginRequired {
			return errors.New("missing origin")
		}
		return nil
	}

	if len(g.cfg.AllowedOrigins) == 0 {
		return errors.New("origin not allowed (no allowlist)")
	}

	originHost := originHostOnly(origin)
	for _, a := range g.cfg.AllowedOrigins {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if a == "*" {
			return nil
		}
		if origin == a {
			return nil
		}
		// Host match ignores port and scheme.
		if originHost != "" && originHost == originHostOnly(a) {
			return nil
		}
	}
	return fmt.Errorf("origin not allowed: %s", origin)
}

func originHostOnly(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return ""
		}
		h := strings.TrimSpace(u.Host)
		if h == "" {
			return ""
		}
		if host, _, err := net.SplitHostPort(h); err == nil {
			return strings.ToLower(host)
		}
		return strings.ToLower(h)
	}

	if host, _, err := net.SplitHostPort(s); err == nil {
		return strings.ToLower(host)
	}
	return strings.ToLower(s)
}

// deriveOriginPatternsFromAllowedOrigins turns the allowlist into host
// patterns for websocket.Accept.
func deriveOriginPatternsFromAllowedOrigins(allowed []string) []string {
	seen := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		h := originHostOnly(a)
		if h == "" {
			continue
		}
		seen[h] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for h := range seen {
		out = append(out, h)
	}
	slices.Sort(out)
	return out
}
