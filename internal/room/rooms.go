// Package room maps logical room keys to the set of live connections
// joined to them.
package room

import (
	"sync"

	"github.com/google/uuid"

	"github.com/kayelam/huddle/internal/model"
)

// Key addresses a broadcast group: one inbox room per user, one
// conversation room per chat.
type Key string

func Inbox(userID uuid.UUID) Key {
	return Key("inbox:" + userID.String())
}

func Conversation(chatID uuid.UUID) Key {
	return Key("conversation:" + chatID.String())
}

// Receiver is the delivery end of a live connection. Deliver must never
// block; slow consumers drop events instead of stalling broadcasts.
type Receiver interface {
	ConnID() uuid.UUID
	Deliver(ev model.Event)
}

// Roster tracks room membership in both directions: room -> connections
// and connection -> joined rooms. Membership is connection-scoped; a user
// with two tabs on the same chat holds two independent memberships.
//
// Rooms are created lazily on first join and dropped when their last
// member leaves. Membership is ephemeral state, so a single coarse lock
// is enough.
type Roster struct {
	mu     sync.RWMutex
	rooms  map[Key]map[uuid.UUID]Receiver
	joined map[uuid.UUID]map[Key]struct{}
}

func NewRoster() *Roster {
	return &Roster{
		rooms:  make(map[Key]map[uuid.UUID]Receiver),
		joined: make(map[uuid.UUID]map[Key]struct{}),
	}
}

// Join adds rc to the room. Joining a room twice has no additional effect.
func (r *Roster) Join(rc Receiver, key Key) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[key]
	if !ok {
		members = make(map[uuid.UUID]Receiver)
		r.rooms[key] = members
	}
	members[rc.ConnID()] = rc

	keys, ok := r.joined[rc.ConnID()]
	if !ok {
		keys = make(map[Key]struct{})
		r.joined[rc.ConnID()] = keys
	}
	keys[key] = struct{}{}
}

// Leave removes the connection from a single room. Unknown connections
// and unknown rooms are no-ops.
func (r *Roster) Leave(connID uuid.UUID, key Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(connID, key)
}

func (r *Roster) leaveLocked(connID uuid.UUID, key Key) {
	if members, ok := r.rooms[key]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(r.rooms, key)
		}
	}
	if keys, ok := r.joined[connID]; ok {
		delete(keys, key)
		if len(keys) == 0 {
			delete(r.joined, connID)
		}
	}
}

// LeaveAll removes the connection from every room it had joined and
// returns the keys it left. Used on disconnect so no later broadcast can
// reach a closed transport.
func (r *Roster) LeaveAll(connID uuid.UUID) []Key {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]Key, 0, len(r.joined[connID]))
	for key := range r.joined[connID] {
		keys = append(keys, key)
	}
	for _, key := range keys {
		r.leaveLocked(connID, key)
	}
	return keys
}

// Rooms returns the keys the connection is currently joined to.
func (r *Roster) Rooms(connID uuid.UUID) []Key {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]Key, 0, len(r.joined[connID]))
	for key := range r.joined[connID] {
		keys = append(keys, key)
	}
	return keys
}

// Size returns the number of connections in a room.
func (r *Roster) Size(key Key) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[key])
}

// Broadcast delivers ev to every connection in the room.
func (r *Roster) Broadcast(key Key, ev model.Event) {
	r.BroadcastExcept(key, ev, uuid.Nil)
}

// BroadcastExcept delivers ev to every connection in the room except the
// one identified by except. Delivery is fire-and-forget.
func (r *Roster) BroadcastExcept(key Key, ev model.Event, except uuid.UUID) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for connID, rc := range r.rooms[key] {
		if connID == except {
			continue
		}
		rc.Deliver(ev)
	}
}
