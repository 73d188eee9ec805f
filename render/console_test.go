package render

import (
	"bytes"
	"context"
	"iter"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/agentgraph/graph"
	"github.com/smallnest/agentgraph/schema"
)

// syncBuffer guards a bytes.Buffer for concurrent writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestConsoleWatch(t *testing.T) {
	agent := graph.New()

	painter := graph.NewNode(graph.NodeSpec{
		ID:      "painter",
		Name:    "Painter",
		Version: "0.1",
		Input:   schema.Object(schema.Fields{}),
		Output:  schema.Object(schema.Fields{"done": schema.Boolean()}),
		Run: func(tc *graph.Context, input map[string]any) iter.Seq2[graph.Output, error] {
			return func(yield func(graph.Output, error) bool) {
				tc.Render("render-0", "loading")
				tc.Render("render-1", "done")
				yield(graph.Output{"done": true}, nil)
			}
		},
	})
	node, err := agent.AddNode("P", painter)
	require.NoError(t, err)

	var buf syncBuffer
	console := NewConsole(&buf)
	stop := console.Watch(node)
	defer stop()

	inv := node.Invoke(context.Background(), map[string]any{})
	_, err = inv.Result(context.Background())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		out := buf.String()
		return bytes.Contains([]byte(out), []byte("render-0")) &&
			bytes.Contains([]byte(out), []byte("render-1"))
	}, 2*time.Second, time.Millisecond)

	out := buf.String()
	assert.Contains(t, out, "P")
	assert.Contains(t, out, inv.Run.ID)
	assert.Contains(t, out, "loading")
}
