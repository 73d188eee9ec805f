package nodes

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/smallnest/agentgraph/graph"
	"github.com/smallnest/agentgraph/llm"
	"github.com/smallnest/agentgraph/session"
)

// Thread manages a multi-turn conversation against a chat node. Turns are
// persisted in a session store and replayed as the node's "messages" input,
// so the model sees the full history on every invocation.
type Thread struct {
	node  *graph.GraphNode
	store session.Store
	id    string
}

// NewThread opens a fresh conversation thread backed by the given store.
// The chat node must accept the "query" and "messages" inputs
// (ChatCompletion and ChatCompletionWithTools both do).
func NewThread(ctx context.Context, node *graph.GraphNode, store session.Store, title string) (*Thread, error) {
	id := uuid.New().String()
	sess := &session.Session{ID: id, Title: title, CreatedAt: time.Now()}
	if err := store.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return &Thread{node: node, store: store, id: id}, nil
}

// OpenThread resumes a previously stored conversation thread.
func OpenThread(ctx context.Context, node *graph.GraphNode, store session.Store, sessionID string) (*Thread, error) {
	if _, err := store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return &Thread{node: node, store: store, id: sessionID}, nil
}

// ID returns the thread's session id.
func (t *Thread) ID() string { return t.id }

// Chat sends one user turn through the chat node with the stored history and
// persists both sides of the exchange. It returns the assistant's markdown.
func (t *Thread) Chat(ctx context.Context, text string) (string, error) {
	stored, err := t.store.Messages(ctx, t.id)
	if err != nil {
		return "", err
	}
	history := make([]llm.Message, 0, len(stored))
	for _, m := range stored {
		history = append(history, llm.Message{Role: m.Role, Content: m.Content})
	}

	inv := t.node.Invoke(ctx, map[string]any{"query": text, "messages": history})
	out, err := inv.Result(ctx)
	if err != nil {
		return "", err
	}
	if errMsg, ok := out["error"].(string); ok && errMsg != "" {
		return "", fmt.Errorf("chat failed: %s", errMsg)
	}
	markdown, _ := out["markdown"].(string)

	now := time.Now()
	userMsg := &session.Message{
		ID:        uuid.New().String(),
		SessionID: t.id,
		Role:      llm.RoleUser,
		Content:   text,
		CreatedAt: now,
	}
	if err := t.store.AppendMessage(ctx, userMsg); err != nil {
		return "", fmt.Errorf("failed to store user turn: %w", err)
	}
	assistantMsg := &session.Message{
		ID:        uuid.New().String(),
		SessionID: t.id,
		Role:      llm.RoleAssistant,
		Content:   markdown,
		CreatedAt: now,
	}
	if err := t.store.AppendMessage(ctx, assistantMsg); err != nil {
		return "", fmt.Errorf("failed to store assistant turn: %w", err)
	}

	return markdown, nil
}

// History returns the stored turns of the thread in order.
func (t *Thread) History(ctx context.Context) ([]*session.Message, error) {
	return t.store.Messages(ctx, t.id)
}
