package ws

import (
	"context"
	"log/slog"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/kayelam/huddle/internal/model"
)

// Client is one live transport connection. The user binding stays empty
// until a "setup" event arrives; a connection may disconnect without ever
// identifying itself.
type Client struct {
	connID uuid.UUID
	userID uuid.UUID // written only on the hub goroutine
	conn   *websocket.Conn
	hub    *Hub
	send   chan model.Event
	log    *slog.Logger
}

func NewClient(conn *websocket.Conn, hub *Hub, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		connID: uuid.New(),
		conn:   conn,
		hub:    hub,
		send:   make(chan model.Event, 64),
		log:    log,
	}
}

func (c *Client) ConnID() uuid.UUID { return c.connID }

// UserID returns the bound user, or uuid.Nil before setup.
func (c *Client) UserID() uuid.UUID { return c.userID }

// Deliver implements room.Receiver. It never blocks; a client that can't
// keep up loses events rather than stalling the broadcaster.
func (c *Client) Deliver(ev model.Event) {
	select {
	case c.send <- ev:
	default:
		c.log.Warn("dropping event - client channel full",
			"conn_id", c.connID,
			"event", ev.Name)
	}
}

// Events exposes the outbound stream. The write pump drains it; tests
// read it directly.
func (c *Client) Events() <-chan model.Event { return c.send }

// ReadPump reads envelopes off the websocket and hands them to the hub.
// It blocks until the connection dies, then unregisters.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister <- c
		c.conn.CloseNow()
	}()

	for {
		var ev model.Event
		if err := wsjson.Read(ctx, c.conn, &ev); err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure &&
				status != websocket.StatusGoingAway &&
				status != -1 {
				c.log.Warn("websocket read failed", "conn_id", c.connID, "error", err)
			}
			return
		}

		select {
		case c.hub.inbound <- frame{client: c, ev: ev}:
		case <-ctx.Done():
			return
		}
	}
}

// WritePump drains the send channel onto the websocket.
func (c *Client) WritePump(ctx context.Context) {
	for {
		select {
		case ev, ok := <-c.send:
			if !ok {
				c.conn.Close(websocket.StatusNormalClosure, "channel closed")
				return
			}

			writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err := wsjson.Write(writeCtx, c.conn, ev)
			cancel()
			if err != nil {
				c.log.Warn("websocket write failed",
					"conn_id", c.connID,
					"event", ev.Name,
					"error", err)
				continue
			}

		case <-ctx.Done():
			c.conn.Close(websocket.StatusGoingAway, "context cancelled")
			return
		}
	}
}
