package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/agentgraph/session"
)

func newTestStore(t *testing.T) *RedisStore {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	store := NewRedisStore(RedisOptions{Addr: mr.Addr()})
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRedisStoreSessions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess := &session.Session{ID: "s1", Title: "chat", CreatedAt: time.Now()}
	require.NoError(t, store.CreateSession(ctx, sess))

	got, err := store.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "chat", got.Title)

	list, err := store.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, store.DeleteSession(ctx, "s1"))
	_, err = store.GetSession(ctx, "s1")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestRedisStoreMessages(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateSession(ctx, &session.Session{ID: "s1", Title: "chat", CreatedAt: time.Now()}))

	require.NoError(t, store.AppendMessage(ctx, &session.Message{ID: "m1", SessionID: "s1", Role: "user", Content: "hi", CreatedAt: time.Now()}))
	require.NoError(t, store.AppendMessage(ctx, &session.Message{ID: "m2", SessionID: "s1", Role: "assistant", Content: "hello", CreatedAt: time.Now()}))

	msgs, err := store.Messages(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hi", msgs[0].Content)
	assert.Equal(t, "hello", msgs[1].Content)

	err = store.AppendMessage(ctx, &session.Message{ID: "m3", SessionID: "missing"})
	assert.ErrorIs(t, err, session.ErrNotFound)

	// Deleting the session removes its messages too.
	require.NoError(t, store.DeleteSession(ctx, "s1"))
	_, err = store.Messages(ctx, "s1")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestRedisStoreTTL(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	store := NewRedisStore(RedisOptions{Addr: mr.Addr(), TTL: time.Minute})
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.CreateSession(ctx, &session.Session{ID: "s1", Title: "chat", CreatedAt: time.Now()}))

	mr.FastForward(2 * time.Minute)
	_, err = store.GetSession(ctx, "s1")
	assert.ErrorIs(t, err, session.ErrNotFound)
}
