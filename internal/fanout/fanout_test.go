package fanout

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kayelam/huddle/internal/model"
	"github.com/kayelam/huddle/internal/room"
)

type recorder struct {
	deliveries map[room.Key][]model.Event
}

func newRecorder() *recorder {
	return &recorder{deliveries: make(map[room.Key][]model.Event)}
}

func (r *recorder) Broadcast(key room.Key, ev model.Event) {
	r.deliveries[key] = append(r.deliveries[key], ev)
}

func user(id uuid.UUID) model.User {
	return model.User{ID: id, Username: "u-" + id.String()[:8]}
}

func TestDeliverSkipsSenderByUserID(t *testing.T) {
	u1, u2 := uuid.New(), uuid.New()
	chat := model.Chat{ID: uuid.New(), Users: []model.User{user(u1), user(u2)}}
	msg := model.Message{
		ID:        uuid.New(),
		ChatID:    chat.ID,
		Sender:    user(u1),
		Content:   "hello",
		CreatedAt: time.Now().UTC(),
	}

	rec := newRecorder()
	NewDispatcher(rec, nil).Deliver(msg, chat)

	// u2's inbox got exactly one delivery; the sender's got none, even
	// though the sender is a participant.
	require.Len(t, rec.deliveries[room.Inbox(u2)], 1)
	assert.Empty(t, rec.deliveries[room.Inbox(u1)])

	ev := rec.deliveries[room.Inbox(u2)][0]
	assert.Equal(t, model.EventMessageReceived, ev.Name)

	var got model.Message
	require.NoError(t, json.Unmarshal(ev.Payload, &got))
	assert.Equal(t, msg.ID, got.ID)
	assert.Equal(t, msg.Content, got.Content)
}

func TestDeliverTargetsEveryOtherParticipant(t *testing.T) {
	sender := uuid.New()
	others := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}

	users := []model.User{user(sender)}
	for _, id := range others {
		users = append(users, user(id))
	}
	chat := model.Chat{ID: uuid.New(), IsGroup: true, GroupAdmin: sender, Users: users}
	msg := model.Message{ID: uuid.New(), ChatID: chat.ID, Sender: user(sender)}

	rec := newRecorder()
	NewDispatcher(rec, nil).Deliver(msg, chat)

	for _, id := range others {
		assert.Len(t, rec.deliveries[room.Inbox(id)], 1)
	}
	assert.Empty(t, rec.deliveries[room.Inbox(sender)])
}

func TestDeliverDropsChatWithoutParticipants(t *testing.T) {
	rec := newRecorder()
	d := NewDispatcher(rec, nil)

	d.Deliver(model.Message{ID: uuid.New(), ChatID: uuid.New()}, model.Chat{})

	assert.Empty(t, rec.deliveries)
}
