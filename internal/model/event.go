package model

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Wire event names. These are the contract with the frontend; the spaces
// are load-bearing.
const (
	// client -> server
	EventSetup      = "setup"
	EventJoinChat   = "join chat"
	EventLeaveChat  = "leave chat"
	EventTyping     = "typing"
	EventStopTyping = "stop typing"
	EventNewMessage = "new message"

	// server -> client
	EventConnected       = "connected"
	EventMessageReceived = "message received"
)

// Event is the JSON envelope exchanged over the websocket. Payload shape
// depends on Name: a bare user id for "setup", a bare chat id for the
// room/typing events, a full Message for "new message" and
// "message received", empty for "connected".
type Event struct {
	Name    string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// SetupPayload binds a connection to a user.
type SetupPayload struct {
	UserID uuid.UUID `json:"user_id"`
}

// NewEvent wraps payload into an envelope. Marshaling only fails on
// unsupported types, which would be a programming error here.
func NewEvent(name string, payload any) (Event, error) {
	if payload == nil {
		return Event{Name: name}, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("model: failed to encode %q payload: %w", name, err)
	}
	return Event{Name: name, Payload: raw}, nil
}

// ChatIDEvent builds an envelope whose payload is a bare chat id, used by
// the typing and room events.
func ChatIDEvent(name string, chatID uuid.UUID) Event {
	ev, _ := NewEvent(name, chatID)
	return ev
}

// ChatID decodes a bare chat id payload.
func (e Event) ChatID() (uuid.UUID, error) {
	var id uuid.UUID
	if err := json.Unmarshal(e.Payload, &id); err != nil {
		return uuid.Nil, fmt.Errorf("model: %q payload is not a chat id: %w", e.Name, err)
	}
	if id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("model: %q payload is missing a chat id", e.Name)
	}
	return id, nil
}
