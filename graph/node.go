package graph

import (
	"iter"

	"github.com/smallnest/agentgraph/schema"
)

// InitRunID is the synthetic run id passed to Init when a node is added to a
// graph. Init must not depend on actual run inputs.
const InitRunID = "__NODE_INIT__"

// Metadata is the stable descriptor of an agent node.
type Metadata struct {
	// ID is the node type id (stable across versions).
	ID string

	// Version of the node implementation.
	Version string

	// Name is the human-readable node name.
	Name string

	// Description explains what the node does, surfaced to LLMs when the node
	// is offered as a tool.
	Description string

	// Input declares the node's input fields.
	Input *schema.Schema

	// Output declares the node's output fields. Published outputs are not
	// checked against it; a binding matches any field name the node publishes.
	Output *schema.Schema
}

// Output is one partial output map yielded by a node's Execute sequence. Each
// yield must be a partial map of declared output fields; later yields
// union-update earlier keys.
type Output = map[string]any

// AgentNode is the polymorphic unit composed into a graph.
//
// Execute returns a lazy, finite, non-restartable sequence of partial
// outputs. Completion of the sequence signals RunCompleted; a non-nil error
// from the sequence terminates it and surfaces on the invocation.
type AgentNode interface {
	// Metadata returns the node's stable descriptor.
	Metadata() Metadata

	// Init is called once when the node is added to a graph, with a context
	// whose run id is InitRunID. It may prime lazy resources.
	Init(tc *Context)

	// OnInputEvent is called once per accumulated-input delivery for a run,
	// before Execute. Sink nodes use it to act on partial inputs as they
	// become ready.
	OnInputEvent(tc *Context, partial map[string]any)

	// Execute produces the node's outputs for a fully collected input.
	Execute(tc *Context, input map[string]any) iter.Seq2[Output, error]
}

// BaseNode provides no-op Init and OnInputEvent implementations. Embed it in
// node types that only need Execute.
type BaseNode struct{}

// Init does nothing.
func (BaseNode) Init(tc *Context) {}

// OnInputEvent does nothing.
func (BaseNode) OnInputEvent(tc *Context, partial map[string]any) {}

// RunFunc is the body of a node created with NewNode. Yield partial outputs
// through the returned sequence; use tc.Render for UI updates.
type RunFunc func(tc *Context, input map[string]any) iter.Seq2[Output, error]

// NodeSpec declares an agent node as a literal, for NewNode.
type NodeSpec struct {
	ID          string
	Name        string
	Version     string
	Description string
	Input       *schema.Schema
	Output      *schema.Schema

	// Run is the node body. A nil Run yields nothing and completes
	// immediately.
	Run RunFunc

	// OnInput optionally overrides the per-field input hook.
	OnInput func(tc *Context, partial map[string]any)
}

// NewNode builds an AgentNode from a NodeSpec literal. This is the
// counterpart of subclassing BaseNode for nodes simple enough to declare
// inline.
func NewNode(spec NodeSpec) AgentNode {
	return &specNode{spec: spec}
}

type specNode struct {
	BaseNode
	spec NodeSpec
}

func (n *specNode) Metadata() Metadata {
	return Metadata{
		ID:          n.spec.ID,
		Version:     n.spec.Version,
		Name:        n.spec.Name,
		Description: n.spec.Description,
		Input:       n.spec.Input,
		Output:      n.spec.Output,
	}
}

func (n *specNode) OnInputEvent(tc *Context, partial map[string]any) {
	if n.spec.OnInput != nil {
		n.spec.OnInput(tc, partial)
	}
}

func (n *specNode) Execute(tc *Context, input map[string]any) iter.Seq2[Output, error] {
	if n.spec.Run == nil {
		return func(yield func(Output, error) bool) {}
	}
	return n.spec.Run(tc, input)
}
