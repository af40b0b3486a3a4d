// Package notify implements the client-side notification aggregator:
// deliveries for chats that are not currently open collect into a
// deduplicated, newest-first list.
package notify

import (
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/kayelam/huddle/internal/model"
)

// Aggregator routes delivered messages. The currently selected chat is
// read through an accessor at delivery time, never captured up front; a
// stale comparison value would misroute notifications after the user
// switches chats.
type Aggregator struct {
	mu      sync.Mutex
	entries map[uuid.UUID]model.Message
	order   []uuid.UUID // newest first

	selected func() uuid.UUID
	onOpen   func(model.Message)

	needsRefresh bool
}

// New builds an aggregator. selected reports the chat currently open
// (uuid.Nil for none); onOpen receives messages for that chat so the
// caller can append them to its open message sequence.
func New(selected func() uuid.UUID, onOpen func(model.Message)) *Aggregator {
	return &Aggregator{
		entries:  make(map[uuid.UUID]model.Message),
		selected: selected,
		onOpen:   onOpen,
	}
}

// OnMessage consumes one "message received" delivery. Duplicate
// deliveries of the same message id collapse into a single entry; the
// transport does not guarantee at-most-once.
func (a *Aggregator) OnMessage(msg model.Message) {
	if msg.ChatID == a.selected() {
		if a.onOpen != nil {
			a.onOpen(msg)
		}
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.entries[msg.ID]; ok {
		return
	}
	a.entries[msg.ID] = msg
	a.order = append([]uuid.UUID{msg.ID}, a.order...)
	a.needsRefresh = true
}

// Pending returns the notification list, newest first.
func (a *Aggregator) Pending() []model.Message {
	a.mu.Lock()
	defer a.mu.Unlock()

	return lo.Map(a.order, func(id uuid.UUID, _ int) model.Message {
		return a.entries[id]
	})
}

// Select clears the notification and returns its message so the caller
// can open the chat it belongs to.
func (a *Aggregator) Select(messageID uuid.UUID) (model.Message, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	msg, ok := a.entries[messageID]
	if !ok {
		return model.Message{}, false
	}
	delete(a.entries, messageID)
	a.order = lo.Without(a.order, messageID)
	return msg, true
}

// NeedsRefresh reports whether the chat list should be refetched, and
// resets the flag.
func (a *Aggregator) NeedsRefresh() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	dirty := a.needsRefresh
	a.needsRefresh = false
	return dirty
}
