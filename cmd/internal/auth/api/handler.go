package authapi

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"parley/cmd/identity"
	"parley/cmd/internal/auth/session"
	"parley/cmd/internal/cache"
)

// PasswordPolicy is satisfied by password.Config.
type PasswordPolicy interface {
	Validate(password string) error
}

// Handler wires HTTP auth endpoints to the identity and session services.
type Handler struct {
	log *slog.Logger
	cfg Config

	users    *identity.Service
	sessions *session.Service
	policy   PasswordPolicy
	throttle *loginThrottle
	now      func() time.Time
}

func NewHandler(log *slog.Logger, cfg Config, users *identity.Service, sessions *session.Service, policy PasswordPolicy) (*Handler, error) {
	if users == nil || sessions == nil || policy == nil {
		return nil, errors.New("auth: missing dependency")
	}
	if log == nil {
		log = slog.Default()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	return &Handler{
		log:      log,
		cfg:      cfg,
		users:    users,
		sessions: sessions,
		policy:   policy,
		throttle: newLoginThrottle(cfg),
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Register wires auth routes onto mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/auth/signup", h.handleSignup)
	mux.HandleFunc("/auth/login", h.handleLogin)
	mux.HandleFunc("/auth/refresh", h.handleRefresh)
	mux.HandleFunc("/auth/logout", h.handleLogout)
	mux.HandleFunc("/auth/websocket-token", h.handleWebsocketToken)
	mux.HandleFunc("/auth/me", h.handleMe)
}

// ---- handlers ----

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req credentialsRequest
	if !h.readJSON(w, r, &req) {
		return
	}
	if err := h.policy.Validate(req.Password); err != nil {
		writeError(w, http.StatusBadRequest, "weak_password", err.Error())
		return
	}

	ctx := r.Context()
	u, err := h.users.Register(ctx, req.Username, req.Password, h.now())
	if err != nil {
		switch {
		case identity.IsConflict(err):
			writeError(w, http.StatusConflict, "conflict", "username already exists")
		case identity.IsInvalidInput(err):
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid username")
		default:
			h.log.Error("auth.signup.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	issued, err := h.sessions.Login(ctx, u)
	if err != nil {
		h.writeSessionError(w, "auth.signup.issue.fail", err)
		return
	}

	h.log.Info("auth.signup", "principal_id", u.ID)
	h.setRefreshCookie(w, issued.Refresh.Token, issued.Refresh.ExpiresAt)
	writeJSON(w, http.StatusCreated, toSessionResponse(issued, &u))
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req credentialsRequest
	if !h.readJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "username and password are required")
		return
	}

	ctx := r.Context()
	now := h.now()
	ip := ipString(clientIP(r, h.cfg.TrustProxy))
	identifier := identity.NormalizeUsername(req.Username)

	if blocked, retryAfter := h.throttle.check(ip, identifier, now); blocked {
		h.log.Info("auth.login.rate_limited", "ip", ip, "identifier", identifier, "retry_after_s", int64(retryAfter.Seconds()))
		writeRateLimited(w, retryAfter)
		return
	}

	u, err := h.users.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrBadCredentials) {
			h.throttle.failed(ip, identifier, now)
			h.log.Info("auth.login.failed", "ip", ip, "identifier", identifier)
			writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
			return
		}
		h.log.Error("auth.login.lookup.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	h.throttle.succeeded(identifier)

	issued, err := h.sessions.Login(ctx, u)
	if err != nil {
		h.writeSessionError(w, "auth.login.issue.fail", err)
		return
	}

	h.log.Info("auth.login.success", "principal_id", u.ID, "ip", ip)
	h.setRefreshCookie(w, issued.Refresh.Token, issued.Refresh.ExpiresAt)
	writeJSON(w, http.StatusOK, toSessionResponse(issued, &u))
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req refreshRequest
	if r.ContentLength != 0 {
		if !h.readJSON(w, r, &req) {
			return
		}
	}
	refreshToken := strings.TrimSpace(req.RefreshToken)
	if refreshToken == "" {
		refreshToken, _ = h.refreshTokenFromCookie(r)
	}
	if refreshToken == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "refreshToken is required")
		return
	}

	issued, err := h.sessions.Refresh(r.Context(), refreshToken)
	if err != nil {
		if errors.Is(err, session.ErrUnauthorized) {
			h.clearRefreshCookie(w)
			writeError(w, http.StatusUnauthorized, "invalid_refresh_token", "refresh token is invalid or expired")
			return
		}
		h.writeSessionError(w, "auth.refresh.fail", err)
		return
	}

	h.setRefreshCookie(w, issued.Refresh.Token, issued.Refresh.ExpiresAt)
	writeJSON(w, http.StatusOK, toSessionResponse(issued, nil))
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	claims, ok := h.requireAuth(w, r)
	if !ok {
		return
	}
	pid := claims.PrincipalID
	if err := h.sessions.Logout(r.Context(), pid); err != nil {
		h.writeSessionError(w, "auth.logout.fail", err)
		return
	}

	h.log.Info("auth.logout", "principal_id", pid)
	h.clearRefreshCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleWebsocketToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	claims, ok := h.requireAuth(w, r)
	if !ok {
		return
	}
	pid := claims.PrincipalID
	c, err := h.sessions.RegenerateRealtime(r.Context(), pid)
	if err != nil {
		h.writeSessionError(w, "auth.websocket_token.fail", err)
		return
	}

	writeJSON(w, http.StatusOK, websocketTokenResponse{
		PrincipalID:    pid,
		WebsocketToken: toCredentialResponse(c),
	})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	claims, ok := h.requireAuth(w, r)
	if !ok {
		return
	}
	pid := claims.PrincipalID
	u, err := h.users.GetByID(r.Context(), pid)
	if err != nil {
		if identity.IsNotFound(err) {
			writeError(w, http.StatusUnauthorized, "not_found", "user not found")
			return
		}
		h.log.Error("auth.me.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	writeJSON(w, http.StatusOK, meResponse{User: toUserResponse(u), Access: toAccessInfo(claims)})
}

// ---- helpers ----

func (h *Handler) requireAuth(w http.ResponseWriter, r *http.Request) (session.AccessClaims, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return session.AccessClaims{}, false
	}
	claims, err := h.sessions.VerifyAccessClaims(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
		return session.AccessClaims{}, false
	}
	return claims, true
}

// writeSessionError maps credential store outages to 503 and everything else to 500.
func (h *Handler) writeSessionError(w http.ResponseWriter, event string, err error) {
	if errors.Is(err, cache.ErrStoreUnavailable) {
		h.log.Error(event, "err", err, "reason", "store_unavailable")
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "please retry later")
		return
	}
	h.log.Error(event, "err", err)
	writeError(w, http.StatusInternalServerError, "server_error", "internal error")
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	parts := strings.SplitN(raw, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func clientIP(r *http.Request, trustProxy bool) net.IP {
	if trustProxy {
		if ip := parseForwardedIP(r.Header.Get("X-Forwarded-For")); ip != nil {
			return ip
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip
		}
	}
	return nil
}

func parseForwardedIP(raw string) net.IP {
	if raw == "" {
		return nil
	}
	for _, p := range strings.Split(raw, ",") {
		if ip := net.ParseIP(strings.TrimSpace(p)); ip != nil {
			return ip
		}
	}
	return nil
}

func ipString(ip net.IP) string {
	if ip == nil {
		return ""
	}
	return ip.String()
}
