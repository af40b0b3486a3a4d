// Command loadtest drives a pair of live clients through the full
// socket flow: signup, setup, join chat, typing, message fan-out. The
// receiver feeds deliveries into a notification aggregator and reports
// what it collected.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/kayelam/huddle/internal/model"
	"github.com/kayelam/huddle/internal/notify"
)

var baseURL = flag.String("base-url", "http://localhost:8080", "server base URL")

type session struct {
	User  model.User `json:"user"`
	Token string     `json:"token"`
}

func main() {
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	suffix := uuid.NewString()[:8]
	alice := mustSignup(ctx, "alice-"+suffix)
	bob := mustSignup(ctx, "bob-"+suffix)

	chat := mustAccessChat(ctx, alice, bob.User.ID)
	log.Printf("chat %s between %s and %s", chat.ID, alice.User.Username, bob.User.Username)

	aliceConn := mustDial(ctx, alice)
	defer aliceConn.CloseNow()
	bobConn := mustDial(ctx, bob)
	defer bobConn.CloseNow()

	mustSetup(ctx, aliceConn, alice.User.ID)
	mustSetup(ctx, bobConn, bob.User.ID)

	// Bob has no chat open; every delivery should land as a notification.
	agg := notify.New(
		func() uuid.UUID { return uuid.Nil },
		func(m model.Message) { log.Printf("unexpected open-chat delivery: %s", m.ID) },
	)

	send(ctx, aliceConn, model.ChatIDEvent(model.EventJoinChat, chat.ID))
	send(ctx, aliceConn, model.ChatIDEvent(model.EventTyping, chat.ID))

	msg := mustSendMessage(ctx, alice, chat.ID, "hello from "+alice.User.Username)
	announce, err := model.NewEvent(model.EventNewMessage, msg)
	if err != nil {
		log.Fatalf("failed to build announce event: %v", err)
	}
	send(ctx, aliceConn, announce)
	// Duplicate announce; the aggregator must collapse it.
	send(ctx, aliceConn, announce)

	// Both announces fan out to bob; the aggregator should keep one entry.
	for received := 0; received < 2; received++ {
		var ev model.Event
		readCtx, readCancel := context.WithTimeout(ctx, 5*time.Second)
		err := wsjson.Read(readCtx, bobConn, &ev)
		readCancel()
		if err != nil {
			log.Fatalf("bob read failed after %d deliveries: %v", received, err)
		}
		if ev.Name != model.EventMessageReceived {
			received--
			continue
		}
		var m model.Message
		if err := json.Unmarshal(ev.Payload, &m); err != nil {
			log.Fatalf("bad message payload: %v", err)
		}
		agg.OnMessage(m)
	}

	if !agg.NeedsRefresh() {
		log.Fatal("expected the chat list refresh flag to be set")
	}

	pending := agg.Pending()
	if len(pending) != 1 {
		log.Fatalf("expected 1 deduplicated notification, got %d", len(pending))
	}
	log.Printf("bob collected %d notification(s)", len(pending))
	for _, m := range pending {
		log.Printf("  [%s] %s: %s", m.ChatID, m.Sender.Username, m.Content)
	}
}

func mustSignup(ctx context.Context, name string) session {
	body, _ := json.Marshal(map[string]string{
		"username": name,
		"email":    name + "@example.com",
		"password": "loadtest-password",
	})
	var s session
	mustPost(ctx, "", "/api/user", body, &s)
	return s
}

func mustAccessChat(ctx context.Context, s session, other uuid.UUID) model.Chat {
	body, _ := json.Marshal(map[string]uuid.UUID{"user_id": other})
	var chat model.Chat
	mustPost(ctx, s.Token, "/api/chat", body, &chat)
	return chat
}

func mustSendMessage(ctx context.Context, s session, chatID uuid.UUID, content string) model.Message {
	body, _ := json.Marshal(map[string]any{"chat_id": chatID, "content": content})
	var msg model.Message
	mustPost(ctx, s.Token, "/api/message", body, &msg)
	return msg
}

func mustPost(ctx context.Context, token, path string, body []byte, out any) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, *baseURL+path, bytes.NewReader(body))
	if err != nil {
		log.Fatalf("failed to build request for %s: %v", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("POST %s failed: %v", path, err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		log.Fatalf("POST %s returned %d", path, res.StatusCode)
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		log.Fatalf("failed to decode %s response: %v", path, err)
	}
}

func mustDial(ctx context.Context, s session) *websocket.Conn {
	conn, _, err := websocket.Dial(ctx, *baseURL+"/ws", &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{"Bearer " + s.Token}},
	})
	if err != nil {
		log.Fatalf("failed to dial websocket: %v", err)
	}
	return conn
}

func mustSetup(ctx context.Context, conn *websocket.Conn, userID uuid.UUID) {
	ev, err := model.NewEvent(model.EventSetup, model.SetupPayload{UserID: userID})
	if err != nil {
		log.Fatalf("failed to build setup event: %v", err)
	}
	send(ctx, conn, ev)

	var ack model.Event
	if err := wsjson.Read(ctx, conn, &ack); err != nil {
		log.Fatalf("failed to read setup ack: %v", err)
	}
	if ack.Name != model.EventConnected {
		log.Fatalf("expected %q ack, got %q", model.EventConnected, ack.Name)
	}
}

func send(ctx context.Context, conn *websocket.Conn, ev model.Event) {
	if err := wsjson.Write(ctx, conn, ev); err != nil {
		log.Fatalf("failed to send %q: %v", ev.Name, err)
	}
}
