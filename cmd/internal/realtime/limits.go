package realtime

import "time"

const (
	// Max bytes per websocket frame read (hard limit).
	maxFrameBytes = 64 << 10

	// Max message text length (runes).
	maxMessageChars = 4000
)

const (
	defaultHeartbeatInterval = 15 * time.Second
	defaultHeartbeatTimeout  = 10 * time.Second

	defaultWriteTimeout  = 5 * time.Second
	defaultSendQueueSize = 256
	minSendQueueSize     = 16

	// Writer flush budget after a connection is told to close.
	closeGrace = 1 * time.Second

	// Per-connection rate limits (events per window).
	rateLimitEvents = 120
	rateLimitWindow = 10 * time.Second
)
