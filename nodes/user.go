package nodes

import (
	"iter"

	"github.com/smallnest/agentgraph/graph"
	"github.com/smallnest/agentgraph/schema"
)

// User is the sink node of a chat graph. It republishes every partial input
// as output the moment it arrives, so a frontend subscribed to the node sees
// markdown, streaming text, and UI fragments without waiting for the whole
// input. Markdown additionally gets a sanitized html rendition.
type User struct {
	graph.BaseNode
}

// NewUser creates the User sink node.
func NewUser() *User { return &User{} }

// Metadata returns the node descriptor.
func (u *User) Metadata() graph.Metadata {
	return graph.Metadata{
		ID:      "@agentgraph/user",
		Version: "0.1.0",
		Name:    "User",
		Input: schema.Object(schema.Fields{
			"markdown":       schema.String().Label("Markdown").Optional(),
			"markdownStream": schema.Any().Label("Markdown stream").Optional(),
			"ui":             schema.Any().Label("UI").Optional(),
		}),
		Output: schema.Object(schema.Fields{
			"markdown":       schema.String().Optional(),
			"markdownStream": schema.Any().Optional(),
			"ui":             schema.Any().Optional(),
			"html":           schema.String().Optional(),
		}),
	}
}

// OnInputEvent republishes the partial input as output, so downstream
// consumers receive whatever subset of the node's inputs was available.
func (u *User) OnInputEvent(tc *graph.Context, partial map[string]any) {
	tc.SendOutput(partial)
	if md, ok := partial["markdown"].(string); ok && md != "" {
		tc.SendOutput(map[string]any{"html": RenderMarkdown(md)})
	}
}

// Execute yields nothing; the node's work happens in OnInputEvent.
func (u *User) Execute(tc *graph.Context, input map[string]any) iter.Seq2[graph.Output, error] {
	return func(yield func(graph.Output, error) bool) {}
}
