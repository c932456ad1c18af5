package realtime

import "errors"

var (
	// ErrUnauthorized covers missing or invalid credentials at upgrade or handshake.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden means the authenticated principal is not a member of the conversation.
	ErrForbidden = errors.New("forbidden")

	ErrConversationNotFound = errors.New("conversation not found")
	ErrRouteNotFound        = errors.New("route not found")

	// ErrProtocolViolation is an unexpected frame for the connection state.
	ErrProtocolViolation = errors.New("protocol violation")

	ErrInvalidPattern = errors.New("invalid route pattern")
	ErrRoutesFrozen   = errors.New("route table is frozen")
)
