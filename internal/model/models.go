// Package model defines data structures shared across the app.
package model

import (
	"time"

	"github.com/google/uuid"
)

// User holds the public identity of an account. The hashed password never
// leaves internal/store.
type User struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Chat is a conversation between two or more users. Users is ordered by
// join time. GroupAdmin is zero for 1:1 chats and must be a member for
// group chats.
type Chat struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name,omitempty"`
	IsGroup    bool      `json:"is_group"`
	GroupAdmin uuid.UUID `json:"group_admin,omitempty"`
	Users      []User    `json:"users"`
	CreatedAt  time.Time `json:"created_at"`
}

// Member reports whether userID is a participant of the chat.
func (c Chat) Member(userID uuid.UUID) bool {
	for _, u := range c.Users {
		if u.ID == userID {
			return true
		}
	}
	return false
}

// Message holds a single persisted chat message. The sender is always a
// member of the referenced chat; membership is enforced at creation time
// by the message handler, not re-checked downstream.
type Message struct {
	ID        uuid.UUID `json:"id"`
	ChatID    uuid.UUID `json:"chat_id"`
	Sender    User      `json:"sender"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
