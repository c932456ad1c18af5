package realtime

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config tunes the gateway, handlers and liveness monitor.
type Config struct {
	// Routes are the upgrade path patterns served, in match order.
	Routes []string

	// ConversationParam names the route parameter that carries the conversation id.
	ConversationParam string

	DevInsecure    bool
	OriginRequired bool
	AllowedOrigins []string

	WriteTimeout  time.Duration
	SendQueueSize int

	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration

	RateEvents int
	RateWindow time.Duration
}

func DefaultConfig() Config {
	return Config{
		Routes:            []string{"/conversations/:conversationID"},
		ConversationParam: "conversationID",
		AllowedOrigins:    []string{"http://localhost", "http://127.0.0.1"},
		WriteTimeout:      defaultWriteTimeout,
		SendQueueSize:     defaultSendQueueSize,
		HeartbeatInterval: defaultHeartbeatInterval,
		HeartbeatTimeout:  defaultHeartbeatTimeout,
		RateEvents:        rateLimitEvents,
		RateWindow:        rateLimitWindow,
	}
}

// LoadConfigFromEnv reads PARLEY_WS_* overrides. Invalid values keep defaults.
func LoadConfigFromEnv() Config {
	cfg := DefaultConfig()

	if routes := envCSV("PARLEY_WS_ROUTES"); len(routes) > 0 {
		cfg.Routes = routes
	}
	if v := strings.TrimSpace(os.Getenv("PARLEY_WS_CONVERSATION_PARAM")); v != "" {
		cfg.ConversationParam = v
	}

	cfg.DevInsecure = envBool("PARLEY_WS_DEV_INSECURE", false)
	cfg.OriginRequired = envBool("PARLEY_WS_ORIGIN_REQUIRED", false)
	if origins := envCSV("PARLEY_WS_ALLOWED_ORIGINS"); len(origins) > 0 {
		cfg.AllowedOrigins = origins
	}

	cfg.WriteTimeout = envDuration("PARLEY_WS_WRITE_TIMEOUT", cfg.WriteTimeout)
	cfg.SendQueueSize = envInt("PARLEY_WS_SEND_QUEUE", cfg.SendQueueSize)
	cfg.HeartbeatInterval = envDuration("PARLEY_WS_HEARTBEAT_INTERVAL", cfg.HeartbeatInterval)
	cfg.HeartbeatTimeout = envDuration("PARLEY_WS_HEARTBEAT_TIMEOUT", cfg.HeartbeatTimeout)
	cfg.RateEvents = envInt("PARLEY_WS_RATE_EVENTS", cfg.RateEvents)
	cfg.RateWindow = envDuration("PARLEY_WS_RATE_WINDOW", cfg.RateWindow)

	return cfg.normalized()
}

// normalized clamps values the runtime depends on.
func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.ConversationParam == "" {
		c.ConversationParam = def.ConversationParam
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.SendQueueSize < minSendQueueSize {
		c.SendQueueSize = minSendQueueSize
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = def.HeartbeatInterval
	}
	if c.HeartbeatTimeout <= 0 || c.HeartbeatTimeout > c.HeartbeatInterval {
		c.HeartbeatTimeout = c.HeartbeatInterval
	}
	if c.RateEvents <= 0 {
		c.RateEvents = def.RateEvents
	}
	if c.RateWindow <= 0 {
		c.RateWindow = def.RateWindow
	}
	return c
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func envCSV(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
