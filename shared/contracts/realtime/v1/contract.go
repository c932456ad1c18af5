// Package v1 is the realtime wire contract shared by the server and its clients.
package v1

import (
	"encoding/json"
	"errors"
	"time"
)

const (
	TypeAuthenticate = "authenticate"
	TypeMessage      = "message"
	TypeInfo         = "info"
	TypeError        = "error"
)

// Fixed server texts. Clients match on these.
const (
	TextConnectionEstablished = "connection established"
	TextAuthSucceeded         = "authentication successful"
	TextAuthFailed            = "authentication failed"
	TextNotAuthenticated      = "not authenticated"
	TextUnknownType           = "unknown message type"
	TextInvalidMessage        = "invalid message"
	TextRateLimited           = "rate limited"
	TextForbidden             = "forbidden"
	TextConversationNotFound  = "conversation not found"
	TextInternal              = "internal error"
)

// Envelope is the frame shape used in both directions.
// Content is either a JSON string or a MessageContent object.
type Envelope struct {
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content,omitempty"`
	IsValid bool            `json:"isValid"`
}

// Inbound is the superset of fields a client may send.
// Older clients put message bodies under "message" instead of "content".
type Inbound struct {
	Type    string          `json:"type"`
	Token   string          `json:"token,omitempty"`
	Content json.RawMessage `json:"content,omitempty"`
	Message json.RawMessage `json:"message,omitempty"`
}

// Body returns the message body, preferring "content".
func (in Inbound) Body() json.RawMessage {
	if len(in.Content) > 0 && string(in.Content) != "null" {
		return in.Content
	}
	return in.Message
}

// MessageContent is the structured payload of a conversation message.
type MessageContent struct {
	ID             *int64    `json:"id,omitempty"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
	UserID         int64     `json:"userId"`
	ConversationID int64     `json:"conversationId"`
}

var ErrEmptyType = errors.New("missing type")

// DecodeInbound parses one client frame.
func DecodeInbound(b []byte) (Inbound, error) {
	var in Inbound
	if err := json.Unmarshal(b, &in); err != nil {
		return Inbound{}, err
	}
	if in.Type == "" {
		return Inbound{}, ErrEmptyType
	}
	return in, nil
}

// Text builds an envelope whose content is a plain string.
func Text(typ, text string, valid bool) Envelope {
	b, _ := json.Marshal(text)
	return Envelope{Type: typ, Content: b, IsValid: valid}
}

func Info(text string) Envelope  { return Text(TypeInfo, text, true) }
func Error(text string) Envelope { return Text(TypeError, text, false) }

// Message wraps an already encoded message body for delivery.
func Message(content json.RawMessage) Envelope {
	return Envelope{Type: TypeMessage, Content: content, IsValid: true}
}

// ContentText returns Content as a string when it is a JSON string.
func (e Envelope) ContentText() (string, bool) {
	var s string
	if err := json.Unmarshal(e.Content, &s); err != nil {
		return "", false
	}
	return s, true
}
