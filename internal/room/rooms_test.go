package room

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kayelam/huddle/internal/model"
)

type fakeReceiver struct {
	id     uuid.UUID
	events []model.Event
}

func newFakeReceiver() *fakeReceiver {
	return &fakeReceiver{id: uuid.New()}
}

func (f *fakeReceiver) ConnID() uuid.UUID      { return f.id }
func (f *fakeReceiver) Deliver(ev model.Event) { f.events = append(f.events, ev) }

func TestJoinIsIdempotent(t *testing.T) {
	roster := NewRoster()
	rc := newFakeReceiver()
	key := Inbox(uuid.New())

	roster.Join(rc, key)
	roster.Join(rc, key)

	assert.Equal(t, 1, roster.Size(key))
	assert.Len(t, roster.Rooms(rc.id), 1)

	roster.Broadcast(key, model.Event{Name: model.EventConnected})
	assert.Len(t, rc.events, 1, "double join must not cause double delivery")
}

func TestLeaveRemovesMembership(t *testing.T) {
	roster := NewRoster()
	rc := newFakeReceiver()
	key := Conversation(uuid.New())

	roster.Join(rc, key)
	roster.Leave(rc.id, key)

	assert.Equal(t, 0, roster.Size(key))
	assert.Empty(t, roster.Rooms(rc.id))

	// Leaving again, or leaving an unknown room, is a no-op.
	roster.Leave(rc.id, key)
	roster.Leave(uuid.New(), key)
}

func TestLeaveAllEmptiesEveryRoom(t *testing.T) {
	roster := NewRoster()
	rc := newFakeReceiver()
	inbox := Inbox(uuid.New())
	convA := Conversation(uuid.New())
	convB := Conversation(uuid.New())

	roster.Join(rc, inbox)
	roster.Join(rc, convA)
	roster.Join(rc, convB)

	left := roster.LeaveAll(rc.id)
	assert.ElementsMatch(t, []Key{inbox, convA, convB}, left)
	assert.Empty(t, roster.Rooms(rc.id))

	// No dangling broadcasts reach the connection afterwards.
	roster.Broadcast(inbox, model.Event{Name: model.EventMessageReceived})
	roster.Broadcast(convA, model.Event{Name: model.EventTyping})
	assert.Empty(t, rc.events)
}

func TestBroadcastExceptSkipsOnlyTheExcluded(t *testing.T) {
	roster := NewRoster()
	sender := newFakeReceiver()
	other1 := newFakeReceiver()
	other2 := newFakeReceiver()
	key := Conversation(uuid.New())

	roster.Join(sender, key)
	roster.Join(other1, key)
	roster.Join(other2, key)

	ev := model.Event{Name: model.EventTyping}
	roster.BroadcastExcept(key, ev, sender.id)

	assert.Empty(t, sender.events)
	require.Len(t, other1.events, 1)
	require.Len(t, other2.events, 1)
	assert.Equal(t, model.EventTyping, other1.events[0].Name)
}

func TestConversationMembershipIsConnectionScoped(t *testing.T) {
	// A user with two tabs on the same chat holds two independent
	// memberships; both receive broadcasts.
	roster := NewRoster()
	tabA := newFakeReceiver()
	tabB := newFakeReceiver()
	key := Conversation(uuid.New())

	roster.Join(tabA, key)
	roster.Join(tabB, key)

	roster.Broadcast(key, model.Event{Name: model.EventStopTyping})
	assert.Len(t, tabA.events, 1)
	assert.Len(t, tabB.events, 1)

	roster.Leave(tabA.id, key)
	roster.Broadcast(key, model.Event{Name: model.EventStopTyping})
	assert.Len(t, tabA.events, 1)
	assert.Len(t, tabB.events, 2)
}

func TestEmptyRoomsAreCollected(t *testing.T) {
	roster := NewRoster()
	rc := newFakeReceiver()
	key := Conversation(uuid.New())

	roster.Join(rc, key)
	roster.Leave(rc.id, key)

	roster.mu.RLock()
	defer roster.mu.RUnlock()
	assert.NotContains(t, roster.rooms, key)
	assert.NotContains(t, roster.joined, rc.id)
}
