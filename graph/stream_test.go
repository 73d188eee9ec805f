package graph

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamPushRecv(t *testing.T) {
	s := NewStream[string]()
	s.Push("a")
	s.Push("b")

	ctx := context.Background()
	v, err := s.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", v)

	v, err = s.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b", v)
}

func TestStreamRecvBlocksUntilPush(t *testing.T) {
	s := NewStream[int]()

	go func() {
		time.Sleep(10 * time.Millisecond)
		s.Push(42)
	}()

	v, err := s.Recv(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestStreamCloseDrains(t *testing.T) {
	s := NewStream[int]()
	s.Push(1)
	s.Close()
	assert.True(t, s.Closed())

	ctx := context.Background()
	v, err := s.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	_, err = s.Recv(ctx)
	assert.ErrorIs(t, err, ErrStreamClosed)

	// Pushing after close is a no-op.
	s.Push(2)
	_, err = s.Recv(ctx)
	assert.ErrorIs(t, err, ErrStreamClosed)
}

func TestStreamRecvContextCancel(t *testing.T) {
	s := NewStream[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := s.Recv(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStreamSeq(t *testing.T) {
	s := NewStream[string]()
	s.Push("x")
	s.Push("y")
	s.Close()

	var got []string
	for v := range s.Seq(context.Background()) {
		got = append(got, v)
	}
	assert.Equal(t, []string{"x", "y"}, got)
}

func TestStreamDrain(t *testing.T) {
	s := NewStream[int]()
	s.Push(1)
	s.Push(2)
	assert.Equal(t, []int{1, 2}, s.Drain())
	assert.Empty(t, s.Drain())
}
