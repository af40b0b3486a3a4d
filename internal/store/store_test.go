package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kayelam/huddle/internal/store"
	"github.com/kayelam/huddle/internal/testutil"
)

func setup(t *testing.T) (context.Context, *store.Store) {
	t.Helper()
	pool, gooseDB, migDir := testutil.DbInit(t)
	t.Cleanup(func() { testutil.DbCleanup(t, pool, gooseDB, migDir) })
	return context.Background(), store.New(pool)
}

func mustCreateUser(t *testing.T, ctx context.Context, s *store.Store, name string) uuid.UUID {
	t.Helper()
	u, err := s.CreateUser(ctx, name, name+"@example.com", "hashed-password")
	require.NoError(t, err)
	return u.ID
}

func TestCreateAndGetUser(t *testing.T) {
	ctx, s := setup(t)

	created, err := s.CreateUser(ctx, "alice", "alice@example.com", "hashed")
	require.NoError(t, err)

	got, err := s.GetUserByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, "alice@example.com", got.Email)

	_, err = s.GetUserByID(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGetUserWithPasswordByEmail(t *testing.T) {
	ctx, s := setup(t)
	mustCreateUser(t, ctx, s, "alice")

	u, hashed, err := s.GetUserWithPasswordByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, "hashed-password", hashed)

	_, _, err = s.GetUserWithPasswordByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSearchUsersExcludesRequester(t *testing.T) {
	ctx, s := setup(t)
	alice := mustCreateUser(t, ctx, s, "alice")
	mustCreateUser(t, ctx, s, "alicia")
	mustCreateUser(t, ctx, s, "bob")

	users, err := s.SearchUsers(ctx, "ali", alice)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "alicia", users[0].Username)
}

func TestDirectChatLifecycle(t *testing.T) {
	ctx, s := setup(t)
	alice := mustCreateUser(t, ctx, s, "alice")
	bob := mustCreateUser(t, ctx, s, "bob")

	_, err := s.FindDirectChat(ctx, alice, bob)
	assert.ErrorIs(t, err, store.ErrNotFound)

	created, err := s.CreateChat(ctx, "sender", false, uuid.Nil, []uuid.UUID{alice, bob})
	require.NoError(t, err)
	assert.False(t, created.IsGroup)
	require.Len(t, created.Users, 2)
	assert.Equal(t, alice, created.Users[0].ID, "participant order follows creation order")
	assert.Equal(t, bob, created.Users[1].ID)

	// Found regardless of argument order.
	found, err := s.FindDirectChat(ctx, bob, alice)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
}

func TestGroupChatMembership(t *testing.T) {
	ctx, s := setup(t)
	admin := mustCreateUser(t, ctx, s, "admin")
	m1 := mustCreateUser(t, ctx, s, "member1")
	m2 := mustCreateUser(t, ctx, s, "member2")
	late := mustCreateUser(t, ctx, s, "latecomer")

	chat, err := s.CreateChat(ctx, "project", true, admin, []uuid.UUID{admin, m1, m2})
	require.NoError(t, err)
	assert.True(t, chat.IsGroup)
	assert.Equal(t, admin, chat.GroupAdmin)

	require.NoError(t, s.RenameChat(ctx, chat.ID, "project v2"))
	require.NoError(t, s.AddChatMember(ctx, chat.ID, late))
	// Adding an existing member is a no-op.
	require.NoError(t, s.AddChatMember(ctx, chat.ID, late))
	require.NoError(t, s.RemoveChatMember(ctx, chat.ID, m2))

	got, err := s.GetChat(ctx, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, "project v2", got.Name)
	require.Len(t, got.Users, 3)
	assert.Equal(t, late, got.Users[2].ID, "new members append after existing ones")
	assert.False(t, got.Member(m2))
	assert.True(t, got.Member(m1))
}

func TestRenameRejectsDirectChats(t *testing.T) {
	ctx, s := setup(t)
	alice := mustCreateUser(t, ctx, s, "alice")
	bob := mustCreateUser(t, ctx, s, "bob")

	chat, err := s.CreateChat(ctx, "sender", false, uuid.Nil, []uuid.UUID{alice, bob})
	require.NoError(t, err)

	err = s.RenameChat(ctx, chat.ID, "should not work")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestListChatsForUser(t *testing.T) {
	ctx, s := setup(t)
	alice := mustCreateUser(t, ctx, s, "alice")
	bob := mustCreateUser(t, ctx, s, "bob")
	carol := mustCreateUser(t, ctx, s, "carol")

	_, err := s.CreateChat(ctx, "sender", false, uuid.Nil, []uuid.UUID{alice, bob})
	require.NoError(t, err)
	_, err = s.CreateChat(ctx, "trio", true, alice, []uuid.UUID{alice, bob, carol})
	require.NoError(t, err)

	chats, err := s.ListChatsForUser(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, chats, 2)

	chats, err = s.ListChatsForUser(ctx, carol)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, "trio", chats[0].Name)
}

func TestMessagesComeBackInOrderWithSenders(t *testing.T) {
	ctx, s := setup(t)
	alice := mustCreateUser(t, ctx, s, "alice")
	bob := mustCreateUser(t, ctx, s, "bob")

	chat, err := s.CreateChat(ctx, "sender", false, uuid.Nil, []uuid.UUID{alice, bob})
	require.NoError(t, err)

	first, err := s.CreateMessage(ctx, chat.ID, alice, "hello")
	require.NoError(t, err)
	assert.Equal(t, "alice", first.Sender.Username)

	time.Sleep(5 * time.Millisecond) // distinct created_at for stable ordering
	_, err = s.CreateMessage(ctx, chat.ID, bob, "hey yourself")
	require.NoError(t, err)

	messages, err := s.ListMessages(ctx, chat.ID, 0)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "hello", messages[0].Content)
	assert.Equal(t, "hey yourself", messages[1].Content)
	assert.Equal(t, "bob", messages[1].Sender.Username)
}

func TestRefreshTokenLifecycle(t *testing.T) {
	ctx, s := setup(t)
	alice := mustCreateUser(t, ctx, s, "alice")

	token := "test-refresh-token"
	require.NoError(t, s.CreateRefreshToken(ctx, token, alice, time.Now().UTC().Add(time.Hour)))

	got, err := s.GetUserFromRefreshToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, alice, got)

	require.NoError(t, s.RevokeRefreshToken(ctx, token))
	_, err = s.GetUserFromRefreshToken(ctx, token)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestExpiredRefreshTokenIsRejected(t *testing.T) {
	ctx, s := setup(t)
	alice := mustCreateUser(t, ctx, s, "alice")

	token := "expired-token"
	require.NoError(t, s.CreateRefreshToken(ctx, token, alice, time.Now().UTC().Add(-time.Hour)))

	_, err := s.GetUserFromRefreshToken(ctx, token)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
