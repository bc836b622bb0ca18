package ws

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/studychat/internal/domain"
)

// Event types - Client → Server
const (
	EventTypeMessageSend   = "message.send"
	EventTypeMessageEdit   = "message.edit"
	EventTypeMessageDelete = "message.delete"
	EventTypePing          = "ping"
)

// Event types - Server → Client
const (
	EventTypeMessageNew     = "message.new"
	EventTypeMessageEdited  = "message.edited"
	EventTypeMessageDeleted = "message.deleted"
	EventTypePresence       = "presence"
	EventTypePong           = "pong"
	EventTypeError          = "error"
)

// EventTypeTyping flows both ways: clients send TypingInput, peers receive
// TypingPayload.
const EventTypeTyping = "typing"

// Event is the base envelope for all WebSocket messages.
type Event struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"ts,omitempty"`
}

// --- Client → Server payloads ---

type MessageSendPayload struct {
	ReceiverID uuid.UUID       `json:"receiver_id"`
	Content    string          `json:"content"`
	Nonce      string          `json:"nonce,omitempty"`
	Context    json.RawMessage `json:"context,omitempty"`
}

type MessageEditPayload struct {
	ID      uuid.UUID `json:"id"`
	Content string    `json:"content"`
	Nonce   string    `json:"nonce,omitempty"`
}

type MessageDeletePayload struct {
	ID    uuid.UUID `json:"id"`
	Nonce string    `json:"nonce,omitempty"`
}

type TypingInput struct {
	PeerID   uuid.UUID `json:"peer_id"`
	IsTyping bool      `json:"is_typing"`
}

// --- Server → Client payloads ---

type MessagePayload struct {
	domain.Message
}

type MessageDeletedPayload struct {
	ID uuid.UUID `json:"id"`
}

type TypingPayload struct {
	UserID   uuid.UUID `json:"user_id"`
	IsTyping bool      `json:"is_typing"`
}

type PresencePayload struct {
	UserID uuid.UUID `json:"user_id"`
	Status string    `json:"status"` // "online" | "offline"
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Nonce   string `json:"nonce,omitempty"`
}

// NewEvent creates an event with the current timestamp.
func NewEvent(eventType string, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		Type:      eventType,
		Payload:   data,
		Timestamp: time.Now().UnixMilli(),
	}, nil
}
