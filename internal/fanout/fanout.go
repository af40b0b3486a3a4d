// Package fanout delivers persisted messages to the inbox rooms of a
// chat's participants.
package fanout

import (
	"log/slog"

	"github.com/kayelam/huddle/internal/model"
	"github.com/kayelam/huddle/internal/room"
)

// Broadcaster is the slice of the room roster the dispatcher needs.
type Broadcaster interface {
	Broadcast(key room.Key, ev model.Event)
}

// Dispatcher fans a message out to every participant except the sender.
// It assumes the caller already durably stored the message; delivery is
// best-effort and ephemeral, recipients with no live connection catch up
// via history fetch.
type Dispatcher struct {
	rooms Broadcaster
	log   *slog.Logger
}

func NewDispatcher(rooms Broadcaster, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{rooms: rooms, log: log}
}

// Deliver broadcasts a "message received" event into the inbox room of
// each participant whose user id differs from the sender's. Exclusion is
// by user id: none of the sender's devices receive their own message.
// A chat with no participant list is dropped.
func (d *Dispatcher) Deliver(msg model.Message, chat model.Chat) {
	if len(chat.Users) == 0 {
		d.log.Warn("dropping fan-out for chat without participants",
			"chat_id", msg.ChatID,
			"message_id", msg.ID)
		return
	}

	ev, err := model.NewEvent(model.EventMessageReceived, msg)
	if err != nil {
		d.log.Error("failed to encode message event", "error", err)
		return
	}

	for _, u := range chat.Users {
		if u.ID == msg.Sender.ID {
			continue
		}
		d.rooms.Broadcast(room.Inbox(u.ID), ev)
	}
}
