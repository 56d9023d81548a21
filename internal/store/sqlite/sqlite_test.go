package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/roomchat/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUsersAreUniqueIgnoringCase(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateUser(ctx, "Alice", "hash")
	require.NoError(t, err)

	_, err = s.CreateUser(ctx, "alice", "hash")
	assert.ErrorIs(t, err, store.ErrConflict)

	exists, err := s.UserExists(ctx, "ALICE")
	require.NoError(t, err)
	assert.True(t, exists)

	// Login lookups stay case-sensitive.
	_, err = s.GetUser(ctx, "alice")
	assert.ErrorIs(t, err, store.ErrNotFound)

	user, err := s.GetUser(ctx, "Alice")
	require.NoError(t, err)
	assert.Equal(t, "hash", user.PasswordHash)

	require.NoError(t, s.DeleteUser(ctx, "aLiCe"))
	assert.ErrorIs(t, s.DeleteUser(ctx, "alice"), store.ErrNotFound)
}

func TestListUsersOrdered(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"carol", "alice", "bob"} {
		_, err := s.CreateUser(ctx, name, "hash")
		require.NoError(t, err)
	}

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)

	var names []string
	for _, u := range users {
		names = append(names, u.Username)
	}
	assert.Equal(t, []string{"alice", "bob", "carol"}, names)
}

func TestCreateAndGetRoom(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	room := &store.Room{Name: "team", Private: true, Allowed: []string{"Admin", "alice", "bob"}, Creator: "alice"}
	require.NoError(t, s.CreateRoom(ctx, room))
	assert.False(t, room.CreatedAt.IsZero())

	err := s.CreateRoom(ctx, &store.Room{Name: "team", Creator: "bob"})
	assert.ErrorIs(t, err, store.ErrConflict)

	got, err := s.GetRoom(ctx, "team")
	require.NoError(t, err)
	assert.True(t, got.Private)
	assert.Equal(t, "alice", got.Creator)
	assert.Equal(t, []string{"Admin", "alice", "bob"}, got.Allowed)
	assert.Empty(t, got.Muted)

	_, err = s.GetRoom(ctx, "ghost")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpdateRoomAppliesAndRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateRoom(ctx, &store.Room{Name: "general", Allowed: []string{"Admin"}, Creator: "alice"}))

	updated, err := s.UpdateRoom(ctx, "general", func(r *store.Room) error {
		r.Muted = append(r.Muted, "bob")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, updated.Muted)

	boom := errors.New("boom")
	_, err = s.UpdateRoom(ctx, "general", func(r *store.Room) error {
		r.Muted = nil
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.GetRoom(ctx, "general")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, got.Muted, "failed update must not be written")

	_, err = s.UpdateRoom(ctx, "ghost", func(*store.Room) error { return nil })
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMessageLogOrderAndDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateRoom(ctx, &store.Room{Name: "general", Creator: "alice"}))

	for i, text := range []string{"one", "two", "three"} {
		msg := &store.Message{Room: "general", From: "alice", Text: text, Type: store.MessageTypeChat, Timestamp: int64(i + 1)}
		require.NoError(t, s.AppendMessage(ctx, msg))
		assert.NotZero(t, msg.ID)
		assert.Equal(t, i, msg.Index)
	}

	forbidden := errors.New("forbidden")
	_, err := s.DeleteMessageAt(ctx, "general", 1, func(*store.Message) error { return forbidden })
	assert.ErrorIs(t, err, forbidden)

	deleted, err := s.DeleteMessageAt(ctx, "general", 1, nil)
	require.NoError(t, err)
	assert.Equal(t, "two", deleted.Text)

	_, err = s.DeleteMessageAt(ctx, "general", 5, nil)
	assert.ErrorIs(t, err, store.ErrNotFound)

	messages, err := s.ListMessages(ctx, "general")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "one", messages[0].Text)
	assert.Equal(t, "three", messages[1].Text)
	assert.Equal(t, 1, messages[1].Index)
	assert.Equal(t, store.MessageTypeChat, messages[1].Type)

	next := &store.Message{Room: "general", From: "bob", Text: "four", Type: store.MessageTypeChat, Timestamp: 9}
	require.NoError(t, s.AppendMessage(ctx, next))
	assert.Equal(t, 2, next.Index)
}

func TestDeleteRoomPurgesMessages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateRoom(ctx, &store.Room{Name: "team", Private: true, Allowed: []string{"alice"}, Creator: "alice"}))
	require.NoError(t, s.AppendMessage(ctx, &store.Message{Room: "team", From: "alice", Text: "hi", Type: store.MessageTypeChat, Timestamp: 1}))

	require.NoError(t, s.DeleteRoom(ctx, "team"))
	assert.ErrorIs(t, s.DeleteRoom(ctx, "team"), store.ErrNotFound)

	messages, err := s.ListMessages(ctx, "team")
	require.NoError(t, err)
	assert.Empty(t, messages)

	// The name is free again and starts with an empty history and member list.
	require.NoError(t, s.CreateRoom(ctx, &store.Room{Name: "team", Creator: "bob"}))
	got, err := s.GetRoom(ctx, "team")
	require.NoError(t, err)
	assert.Empty(t, got.Allowed)
}
