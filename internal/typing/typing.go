// Package typing converts raw keystroke events into debounced
// typing / stop typing broadcasts for conversation rooms.
package typing

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kayelam/huddle/internal/model"
	"github.com/kayelam/huddle/internal/room"
)

// DefaultQuiet is how long a connection must stay silent before its
// typing indicator expires.
const DefaultQuiet = 3 * time.Second

// Broadcaster is the slice of the room roster the coordinator needs.
type Broadcaster interface {
	BroadcastExcept(key room.Key, ev model.Event, except uuid.UUID)
}

type pair struct {
	chatID uuid.UUID
	connID uuid.UUID
}

type state struct {
	typing     bool
	lastSignal time.Time
	timer      *time.Timer
}

// Coordinator tracks a debounce state machine per (chat, connection)
// pair. Exactly one "typing" event fires per Idle->Typing transition and
// one "stop typing" fires once the quiet interval elapses with no further
// keystrokes, never while keystrokes are still arriving.
type Coordinator struct {
	mu     sync.Mutex
	states map[pair]*state
	rooms  Broadcaster
	quiet  time.Duration
	now    func() time.Time
}

func NewCoordinator(rooms Broadcaster, quiet time.Duration) *Coordinator {
	if quiet <= 0 {
		quiet = DefaultQuiet
	}
	return &Coordinator{
		states: make(map[pair]*state),
		rooms:  rooms,
		quiet:  quiet,
		now:    time.Now,
	}
}

// Keystroke records typing activity in a chat. The first keystroke of a
// burst broadcasts "typing" into the conversation room, excluding the
// originating connection; further keystrokes only push the expiry out.
func (c *Coordinator) Keystroke(chatID, connID uuid.UUID) {
	k := pair{chatID, connID}

	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.states[k]
	if !ok {
		st = &state{}
		c.states[k] = st
	}

	started := !st.typing
	st.typing = true
	st.lastSignal = c.now()

	// One outstanding timer per pair. Resetting keeps timer count bounded
	// under rapid typing; the fired check still compares true elapsed time
	// so a late reset cannot cut a burst short.
	if st.timer == nil {
		st.timer = time.AfterFunc(c.quiet, func() { c.expire(k) })
	} else {
		st.timer.Reset(c.quiet)
	}

	if started {
		c.rooms.BroadcastExcept(room.Conversation(chatID), model.ChatIDEvent(model.EventTyping, chatID), connID)
	}
}

// expire is the deferred quiet-interval check. It is a no-op unless the
// pair is still typing and has truly been silent for the full interval.
func (c *Coordinator) expire(k pair) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.states[k]
	if !ok || !st.typing {
		return
	}
	if c.now().Sub(st.lastSignal) < c.quiet {
		// A later keystroke reset the clock; its own check supersedes this one.
		return
	}
	c.stopLocked(k, st)
}

// Stop handles an explicit "stop typing" from the client.
func (c *Coordinator) Stop(chatID, connID uuid.UUID) {
	k := pair{chatID, connID}

	c.mu.Lock()
	defer c.mu.Unlock()

	if st, ok := c.states[k]; ok && st.typing {
		c.stopLocked(k, st)
	}
}

// ReleaseChat discards typing state for one chat, emitting "stop typing"
// if the connection was mid-burst. Called when a connection leaves a
// conversation room.
func (c *Coordinator) ReleaseChat(chatID, connID uuid.UUID) {
	c.Stop(chatID, connID)
}

// Release discards all typing state held by a connection, emitting
// "stop typing" for every chat it was still typing in. Called on
// disconnect so receivers never see a vanished connection as forever
// typing.
func (c *Coordinator) Release(connID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, st := range c.states {
		if k.connID != connID {
			continue
		}
		if st.typing {
			c.stopLocked(k, st)
		} else {
			c.dropLocked(k, st)
		}
	}
}

func (c *Coordinator) stopLocked(k pair, st *state) {
	st.typing = false
	c.dropLocked(k, st)
	c.rooms.BroadcastExcept(room.Conversation(k.chatID), model.ChatIDEvent(model.EventStopTyping, k.chatID), k.connID)
}

func (c *Coordinator) dropLocked(k pair, st *state) {
	if st.timer != nil {
		st.timer.Stop()
	}
	delete(c.states, k)
}
