package graph

import (
	"context"
	"iter"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/agentgraph/schema"
)

func TestContextResolveAndGlobalState(t *testing.T) {
	agent := New()
	agent.RegisterService("service.key", "service-value")

	probe := NewNode(NodeSpec{
		ID:      "probe",
		Name:    "Probe",
		Version: "0.1",
		Input:   schema.Object(schema.Fields{}),
		Output:  schema.Object(schema.Fields{"service": schema.Any(), "state": schema.Any()}),
		Run: func(tc *Context, input map[string]any) iter.Seq2[Output, error] {
			return func(yield func(Output, error) bool) {
				service, _ := tc.Resolve("service.key")

				tc.SetGlobalState("run.key", "run-value")
				state, _ := tc.Resolve("run.key")

				yield(Output{"service": service, "state": state}, nil)
			}
		},
	})
	node, err := agent.AddNode("probe", probe)
	require.NoError(t, err)

	inv := node.Invoke(context.Background(), map[string]any{})
	out, err := inv.Result(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "service-value", out["service"])
	assert.Equal(t, "run-value", out["state"])

	// Run-scoped state is visible from outside through the agent until
	// cleared.
	v, ok := agent.resolve(inv.Run.ID, "run.key")
	require.True(t, ok)
	assert.Equal(t, "run-value", v)

	agent.ClearRun(inv.Run.ID)
	_, ok = agent.resolve(inv.Run.ID, "run.key")
	assert.False(t, ok)

	// Agent services survive run cleanup.
	v, ok = agent.resolve(inv.Run.ID, "service.key")
	require.True(t, ok)
	assert.Equal(t, "service-value", v)
}

func TestContextRunStateSharedAcrossNodes(t *testing.T) {
	agent := New()

	writer := NewNode(NodeSpec{
		ID:      "writer",
		Name:    "Writer",
		Version: "0.1",
		Input:   schema.Object(schema.Fields{}),
		Output:  schema.Object(schema.Fields{"done": schema.Boolean()}),
		Run: func(tc *Context, input map[string]any) iter.Seq2[Output, error] {
			return func(yield func(Output, error) bool) {
				tc.SetGlobalState("shared.key", "from-writer")
				yield(Output{"done": true}, nil)
			}
		},
	})
	reader := NewNode(NodeSpec{
		ID:      "reader",
		Name:    "Reader",
		Version: "0.1",
		Input:   schema.Object(schema.Fields{"done": schema.Any()}),
		Output:  schema.Object(schema.Fields{"seen": schema.Any()}),
		Run: func(tc *Context, input map[string]any) iter.Seq2[Output, error] {
			return func(yield func(Output, error) bool) {
				v, _ := tc.Resolve("shared.key")
				yield(Output{"seen": v}, nil)
			}
		},
	})

	w, err := agent.AddNode("writer", writer)
	require.NoError(t, err)
	r, err := agent.AddNode("reader", reader)
	require.NoError(t, err)
	r.Bind(Bindings{"done": w.Output("done")})

	seen := make(chan any, 1)
	agent.Stream().Subscribe(func(e AgentEvent) {
		if e.Type == EventOutput && e.Node.ID == "reader" {
			if v, ok := e.Output["seen"]; ok {
				seen <- v
			}
		}
	})

	inv := w.Invoke(context.Background(), map[string]any{})
	_, err = inv.Result(context.Background())
	require.NoError(t, err)

	select {
	case v := <-seen:
		assert.Equal(t, "from-writer", v)
	case <-time.After(2 * time.Second):
		t.Fatal("reader never published")
	}
}
