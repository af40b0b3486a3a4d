// Package ws owns the live connection registry and routes wire events to
// the room, typing and fan-out subsystems.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kayelam/huddle/internal/fanout"
	"github.com/kayelam/huddle/internal/model"
	"github.com/kayelam/huddle/internal/room"
	"github.com/kayelam/huddle/internal/typing"
)

// ChatSource resolves a chat's participant list at delivery time. The
// persisted chat record is the single source of truth for fan-out
// targeting; client payloads are not trusted to carry it.
type ChatSource interface {
	GetChat(ctx context.Context, chatID uuid.UUID) (model.Chat, error)
}

type frame struct {
	client *Client
	ev     model.Event
}

// Registration pairs a client with a done signal so the caller knows the
// registry entry exists before pumping messages.
type Registration struct {
	Client *Client
	Done   chan struct{}
}

// Hub is the connection registry and the single dispatcher loop. All
// registry and room mutations happen on the Run goroutine; room state is
// additionally lock-guarded because typing timers broadcast from their
// own goroutines.
type Hub struct {
	rooms  *room.Roster
	typing *typing.Coordinator
	fanout *fanout.Dispatcher
	chats  ChatSource

	clients map[uuid.UUID]*Client

	Register   chan Registration
	Unregister chan *Client
	inbound    chan frame

	log *slog.Logger
}

// NewHub wires a hub with its roster, typing coordinator and fan-out
// dispatcher. quiet <= 0 falls back to the default typing interval.
func NewHub(chats ChatSource, quiet time.Duration, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	rooms := room.NewRoster()
	return &Hub{
		rooms:      rooms,
		typing:     typing.NewCoordinator(rooms, quiet),
		fanout:     fanout.NewDispatcher(rooms, log),
		chats:      chats,
		clients:    make(map[uuid.UUID]*Client),
		Register:   make(chan Registration),
		Unregister: make(chan *Client),
		inbound:    make(chan frame, 256),
		log:        log,
	}
}

// Rooms exposes the roster to the handler layer.
func (h *Hub) Rooms() *room.Roster { return h.rooms }

// Run manages incoming and outgoing hub traffic until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case reg := <-h.Register:
			h.clients[reg.Client.connID] = reg.Client
			close(reg.Done)

		case client := <-h.Unregister:
			h.drop(client)

		case f := <-h.inbound:
			h.dispatch(ctx, f.client, f.ev)

		case <-ctx.Done():
			h.log.Info("hub stopping", "error", ctx.Err())
			return
		}
	}
}

// drop removes a connection from the registry, its typing state and every
// room it joined. Safe to call for connections that never completed setup and
// idempotent across disconnect races.
func (h *Hub) drop(c *Client) {
	if _, ok := h.clients[c.connID]; !ok {
		return
	}
	h.typing.Release(c.connID)
	h.rooms.LeaveAll(c.connID)
	delete(h.clients, c.connID)
	close(c.send)
}

// dispatch routes one inbound envelope. Malformed payloads and frames
// from already-dropped connections are discarded without state change.
func (h *Hub) dispatch(ctx context.Context, c *Client, ev model.Event) {
	if _, ok := h.clients[c.connID]; !ok {
		// Disconnect raced a pending frame; not an error.
		return
	}

	switch ev.Name {
	case model.EventSetup:
		var p model.SetupPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil || p.UserID == uuid.Nil {
			h.log.Debug("dropping malformed setup", "conn_id", c.connID, "error", err)
			return
		}
		c.userID = p.UserID
		h.rooms.Join(c, room.Inbox(p.UserID))
		ack, _ := model.NewEvent(model.EventConnected, nil)
		c.Deliver(ack)

	case model.EventJoinChat:
		chatID, err := ev.ChatID()
		if err != nil {
			h.log.Debug("dropping malformed join", "conn_id", c.connID, "error", err)
			return
		}
		h.rooms.Join(c, room.Conversation(chatID))

	case model.EventLeaveChat:
		chatID, err := ev.ChatID()
		if err != nil {
			h.log.Debug("dropping malformed leave", "conn_id", c.connID, "error", err)
			return
		}
		h.typing.ReleaseChat(chatID, c.connID)
		h.rooms.Leave(c.connID, room.Conversation(chatID))

	case model.EventTyping:
		chatID, err := ev.ChatID()
		if err != nil {
			h.log.Debug("dropping malformed typing", "conn_id", c.connID, "error", err)
			return
		}
		h.typing.Keystroke(chatID, c.connID)

	case model.EventStopTyping:
		chatID, err := ev.ChatID()
		if err != nil {
			h.log.Debug("dropping malformed stop typing", "conn_id", c.connID, "error", err)
			return
		}
		h.typing.Stop(chatID, c.connID)

	case model.EventNewMessage:
		var msg model.Message
		if err := json.Unmarshal(ev.Payload, &msg); err != nil || msg.ChatID == uuid.Nil {
			h.log.Debug("dropping malformed message announce", "conn_id", c.connID, "error", err)
			return
		}
		chat, err := h.chats.GetChat(ctx, msg.ChatID)
		if err != nil {
			h.log.Warn("failed to load chat for fan-out",
				"chat_id", msg.ChatID,
				"error", err)
			return
		}
		h.fanout.Deliver(msg, chat)

	default:
		h.log.Debug("unknown event", "event", ev.Name, "conn_id", c.connID)
	}
}
