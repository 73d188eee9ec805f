package nodes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/agentgraph/graph"
	"github.com/smallnest/agentgraph/llm"
	"github.com/smallnest/agentgraph/session"
	"github.com/smallnest/agentgraph/session/memory"
)

func TestThreadMultiTurn(t *testing.T) {
	model := &scriptedModel{rounds: [][]*llm.Delta{
		{{Content: "Hi there!"}},
		{{Content: "Go is a programming language."}},
	}}

	agent := graph.New()
	chat, err := agent.AddNode("Chat", NewChatCompletion(), &ChatConfig{Model: model})
	require.NoError(t, err)

	ctx := context.Background()
	store := memory.NewMemoryStore()
	thread, err := NewThread(ctx, chat, store, "golang questions")
	require.NoError(t, err)

	first, err := thread.Chat(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, "Hi there!", first)

	second, err := thread.Chat(ctx, "what is Go?")
	require.NoError(t, err)
	assert.Equal(t, "Go is a programming language.", second)

	// The second request replayed the first exchange before the new query.
	require.Len(t, model.requests, 2)
	msgs := model.requests[1].Messages
	require.Len(t, msgs, 3)
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "hello"}, msgs[0])
	assert.Equal(t, llm.Message{Role: llm.RoleAssistant, Content: "Hi there!"}, msgs[1])
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "what is Go?"}, msgs[2])

	// Both sides of both exchanges are persisted in order.
	history, err := thread.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, llm.RoleUser, history[0].Role)
	assert.Equal(t, "hello", history[0].Content)
	assert.Equal(t, llm.RoleAssistant, history[3].Role)
	assert.Equal(t, "Go is a programming language.", history[3].Content)
}

func TestThreadResume(t *testing.T) {
	model := &scriptedModel{rounds: [][]*llm.Delta{
		{{Content: "first"}},
		{{Content: "second"}},
	}}

	agent := graph.New()
	chat, err := agent.AddNode("Chat", NewChatCompletion(), &ChatConfig{Model: model})
	require.NoError(t, err)

	ctx := context.Background()
	store := memory.NewMemoryStore()
	thread, err := NewThread(ctx, chat, store, "resumable")
	require.NoError(t, err)

	_, err = thread.Chat(ctx, "one")
	require.NoError(t, err)

	resumed, err := OpenThread(ctx, chat, store, thread.ID())
	require.NoError(t, err)
	assert.Equal(t, thread.ID(), resumed.ID())

	_, err = resumed.Chat(ctx, "two")
	require.NoError(t, err)

	history, err := resumed.History(ctx)
	require.NoError(t, err)
	assert.Len(t, history, 4)

	_, err = OpenThread(ctx, chat, store, "missing")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestThreadSurfacesErrorField(t *testing.T) {
	// A tools node with no matching tool bails out on its error field; the
	// thread turns that into a real error and stores nothing.
	model := &scriptedModel{rounds: [][]*llm.Delta{
		{{ToolCalls: []llm.ToolCall{{ID: "c", Name: "ghost", Arguments: `{}`}}}},
	}}

	agent := graph.New()
	chat, err := agent.AddNode("Chat", NewChatCompletionWithTools(), &ChatConfig{Model: model})
	require.NoError(t, err)

	ctx := context.Background()
	store := memory.NewMemoryStore()
	thread, err := NewThread(ctx, chat, store, "broken")
	require.NoError(t, err)

	_, err = thread.Chat(ctx, "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown tool")

	history, err := thread.History(ctx)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestChatCompletionMessagesInput(t *testing.T) {
	model := &scriptedModel{rounds: [][]*llm.Delta{{{Content: "ok"}}}}

	agent := graph.New()
	chat, err := agent.AddNode("Chat", NewChatCompletion(), &ChatConfig{Model: model, SystemPrompt: "be brief"})
	require.NoError(t, err)

	// History can also be supplied directly as wire-form maps.
	_, err = chat.Invoke(context.Background(), map[string]any{
		"query": "and now?",
		"messages": []any{
			map[string]any{"role": "user", "content": "earlier question"},
			llm.Message{Role: llm.RoleAssistant, Content: "earlier answer"},
		},
	}).Result(context.Background())
	require.NoError(t, err)

	require.Len(t, model.requests, 1)
	msgs := model.requests[0].Messages
	require.Len(t, msgs, 4)
	assert.Equal(t, llm.RoleSystem, msgs[0].Role)
	assert.Equal(t, "earlier question", msgs[1].Content)
	assert.Equal(t, "earlier answer", msgs[2].Content)
	assert.Equal(t, "and now?", msgs[3].Content)
}
