package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/agentgraph/session"
)

func TestPostgresStore_CreateSession(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresStoreWithPool(mock)

	sess := &session.Session{ID: "s1", Title: "chat", CreatedAt: time.Now()}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sessions")).
		WithArgs(sess.ID, sess.Title, sess.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.CreateSession(context.Background(), sess))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetSession(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresStoreWithPool(mock)
	created := time.Now()

	rows := pgxmock.NewRows([]string{"id", "title", "created_at"}).
		AddRow("s1", "chat", created)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, title, created_at FROM sessions WHERE id = $1")).
		WithArgs("s1").
		WillReturnRows(rows)

	got, err := store.GetSession(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "chat", got.Title)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetSessionNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresStoreWithPool(mock)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, title, created_at FROM sessions WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err = store.GetSession(context.Background(), "missing")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestPostgresStore_AppendAndListMessages(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresStoreWithPool(mock)
	created := time.Now()
	msg := &session.Message{ID: "m1", SessionID: "s1", Role: "user", Content: "hi", CreatedAt: created}

	sessionRows := func() *pgxmock.Rows {
		return pgxmock.NewRows([]string{"id", "title", "created_at"}).AddRow("s1", "chat", created)
	}

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, title, created_at FROM sessions WHERE id = $1")).
		WithArgs("s1").
		WillReturnRows(sessionRows())
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO messages")).
		WithArgs(msg.ID, msg.SessionID, msg.Role, msg.Content, msg.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.AppendMessage(context.Background(), msg))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, title, created_at FROM sessions WHERE id = $1")).
		WithArgs("s1").
		WillReturnRows(sessionRows())
	msgRows := pgxmock.NewRows([]string{"id", "session_id", "role", "content", "created_at"}).
		AddRow("m1", "s1", "user", "hi", created)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, session_id, role, content, created_at FROM messages")).
		WithArgs("s1").
		WillReturnRows(msgRows)

	msgs, err := store.Messages(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hi", msgs[0].Content)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteSession(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresStoreWithPool(mock)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM messages WHERE session_id = $1")).
		WithArgs("s1").
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM sessions WHERE id = $1")).
		WithArgs("s1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, store.DeleteSession(context.Background(), "s1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
