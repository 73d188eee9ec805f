package nodes

import (
	"iter"

	"github.com/smallnest/agentgraph/graph"
	"github.com/smallnest/agentgraph/schema"
)

// NewPassthrough builds a node that copies the named input fields to its
// outputs unchanged. Useful as a join point and in tests.
func NewPassthrough(id string, fields ...string) graph.AgentNode {
	fieldSchemas := schema.Fields{}
	for _, f := range fields {
		fieldSchemas[f] = schema.Any().Optional()
	}
	return graph.NewNode(graph.NodeSpec{
		ID:      id,
		Name:    id,
		Version: "0.1.0",
		Input:   schema.Object(fieldSchemas),
		Output:  schema.Object(fieldSchemas),
		Run: func(tc *graph.Context, input map[string]any) iter.Seq2[graph.Output, error] {
			return func(yield func(graph.Output, error) bool) {
				out := graph.Output{}
				for _, f := range fields {
					if v, ok := input[f]; ok {
						out[f] = v
					}
				}
				if len(out) > 0 {
					yield(out, nil)
				}
			}
		},
	})
}
