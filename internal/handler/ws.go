package handler

import (
	"log"
	"net/http"

	"github.com/coder/websocket"

	"github.com/kayelam/huddle/internal/auth"
	"github.com/kayelam/huddle/internal/ws"
)

// ServeWs handles the client's websocket connection upgrade. The socket
// carries the live event surface (setup, join chat, typing, new message);
// the bound identity still comes from the client's "setup" event.
func ServeWs(h *ws.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if _, err := auth.GetUserFromContext(ctx); err != nil {
			http.Error(w, "Unauthorized.", http.StatusUnauthorized)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			log.Printf("failed to upgrade connection: %v", err)
			return
		}

		c := ws.NewClient(conn, h, nil)
		reg := ws.Registration{
			Client: c,
			Done:   make(chan struct{}),
		}

		h.Register <- reg

		// Wait for registration to complete.
		<-reg.Done

		// We block on c.ReadPump() because the request context is canceled
		// as soon as we return from the handler.
		go c.WritePump(ctx)
		c.ReadPump(ctx)
	}
}
