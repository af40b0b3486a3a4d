package typing

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kayelam/huddle/internal/model"
	"github.com/kayelam/huddle/internal/room"
)

const quiet = 150 * time.Millisecond

type recorded struct {
	name   string
	chatID uuid.UUID
	except uuid.UUID
	at     time.Time
}

// recorder captures broadcasts; timer checks fire on their own
// goroutines, so access is locked.
type recorder struct {
	mu     sync.Mutex
	events []recorded
}

func (r *recorder) BroadcastExcept(key room.Key, ev model.Event, except uuid.UUID) {
	chatID, _ := ev.ChatID()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recorded{name: ev.Name, chatID: chatID, except: except, at: time.Now()})
}

func (r *recorder) byName(name string) []recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []recorded
	for _, ev := range r.events {
		if ev.name == name {
			out = append(out, ev)
		}
	}
	return out
}

func TestSingleTypingEventPerBurst(t *testing.T) {
	rec := &recorder{}
	c := NewCoordinator(rec, quiet)
	chatID, connID := uuid.New(), uuid.New()

	var lastKeystroke time.Time
	for i := 0; i < 4; i++ {
		c.Keystroke(chatID, connID)
		lastKeystroke = time.Now()
		time.Sleep(quiet / 3)
	}

	// No stop may fire while keystrokes are still arriving.
	assert.Empty(t, rec.byName(model.EventStopTyping))

	time.Sleep(3 * quiet)

	typings := rec.byName(model.EventTyping)
	require.Len(t, typings, 1, "one typing event per Idle->Typing transition")
	assert.Equal(t, chatID, typings[0].chatID)
	assert.Equal(t, connID, typings[0].except, "the typist must not receive their own indicator")

	stops := rec.byName(model.EventStopTyping)
	require.Len(t, stops, 1, "exactly one stop typing after the burst")
	assert.Equal(t, chatID, stops[0].chatID)
	assert.GreaterOrEqual(t, stops[0].at.Sub(lastKeystroke), quiet,
		"stop typing must wait out the full quiet interval after the last keystroke")
}

func TestNewBurstAfterQuietEmitsTypingAgain(t *testing.T) {
	rec := &recorder{}
	c := NewCoordinator(rec, quiet)
	chatID, connID := uuid.New(), uuid.New()

	c.Keystroke(chatID, connID)
	time.Sleep(3 * quiet)
	c.Keystroke(chatID, connID)
	time.Sleep(3 * quiet)

	assert.Len(t, rec.byName(model.EventTyping), 2)
	assert.Len(t, rec.byName(model.EventStopTyping), 2)
}

func TestExplicitStop(t *testing.T) {
	rec := &recorder{}
	c := NewCoordinator(rec, quiet)
	chatID, connID := uuid.New(), uuid.New()

	c.Keystroke(chatID, connID)
	c.Stop(chatID, connID)

	stops := rec.byName(model.EventStopTyping)
	require.Len(t, stops, 1)
	assert.Equal(t, connID, stops[0].except)

	// Stopping again, or stopping a pair that never typed, is a no-op.
	c.Stop(chatID, connID)
	c.Stop(uuid.New(), connID)
	assert.Len(t, rec.byName(model.EventStopTyping), 1)

	// The armed timer must not fire a second stop later.
	time.Sleep(2 * quiet)
	assert.Len(t, rec.byName(model.EventStopTyping), 1)
}

func TestReleaseOnDisconnectEmitsStopTyping(t *testing.T) {
	rec := &recorder{}
	c := NewCoordinator(rec, quiet)
	connID := uuid.New()
	chatA, chatB := uuid.New(), uuid.New()

	c.Keystroke(chatA, connID)
	c.Keystroke(chatB, connID)

	// Disconnect mid-quiet-interval: receivers must not be left with a
	// forever-typing ghost.
	c.Release(connID)

	stops := rec.byName(model.EventStopTyping)
	require.Len(t, stops, 2)
	chatIDs := []uuid.UUID{stops[0].chatID, stops[1].chatID}
	assert.ElementsMatch(t, []uuid.UUID{chatA, chatB}, chatIDs)

	time.Sleep(2 * quiet)
	assert.Len(t, rec.byName(model.EventStopTyping), 2)
}

func TestReleaseLeavesOtherConnectionsAlone(t *testing.T) {
	rec := &recorder{}
	c := NewCoordinator(rec, quiet)
	chatID := uuid.New()
	connA, connB := uuid.New(), uuid.New()

	c.Keystroke(chatID, connA)
	c.Keystroke(chatID, connB)
	c.Release(connA)

	stops := rec.byName(model.EventStopTyping)
	require.Len(t, stops, 1)
	assert.Equal(t, connA, stops[0].except)

	// connB's burst still expires on its own clock.
	time.Sleep(3 * quiet)
	stops = rec.byName(model.EventStopTyping)
	require.Len(t, stops, 2)
	assert.Equal(t, connB, stops[1].except)
}

func TestIndependentChatsDebounceIndependently(t *testing.T) {
	rec := &recorder{}
	c := NewCoordinator(rec, quiet)
	connID := uuid.New()
	chatA, chatB := uuid.New(), uuid.New()

	c.Keystroke(chatA, connID)
	c.Keystroke(chatB, connID)
	time.Sleep(3 * quiet)

	assert.Len(t, rec.byName(model.EventTyping), 2)
	assert.Len(t, rec.byName(model.EventStopTyping), 2)
}
