package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/agentgraph/session"
)

func TestMemoryStoreSessions(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	older := &session.Session{ID: "s1", Title: "first", CreatedAt: time.Now().Add(-time.Hour)}
	newer := &session.Session{ID: "s2", Title: "second", CreatedAt: time.Now()}
	require.NoError(t, store.CreateSession(ctx, older))
	require.NoError(t, store.CreateSession(ctx, newer))

	got, err := store.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "first", got.Title)

	list, err := store.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "s2", list[0].ID)

	require.NoError(t, store.DeleteSession(ctx, "s1"))
	_, err = store.GetSession(ctx, "s1")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestMemoryStoreMessages(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.CreateSession(ctx, &session.Session{ID: "s1", Title: "chat", CreatedAt: time.Now()}))

	first := &session.Message{ID: "m1", SessionID: "s1", Role: "user", Content: "hi", CreatedAt: time.Now()}
	second := &session.Message{ID: "m2", SessionID: "s1", Role: "assistant", Content: "hello", CreatedAt: time.Now()}
	require.NoError(t, store.AppendMessage(ctx, first))
	require.NoError(t, store.AppendMessage(ctx, second))

	msgs, err := store.Messages(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hi", msgs[0].Content)
	assert.Equal(t, "hello", msgs[1].Content)

	err = store.AppendMessage(ctx, &session.Message{ID: "m3", SessionID: "missing"})
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	sess := &session.Session{ID: "s1", Title: "original", CreatedAt: time.Now()}
	require.NoError(t, store.CreateSession(ctx, sess))

	sess.Title = "mutated"
	got, err := store.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "original", got.Title)
}
