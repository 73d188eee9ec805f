// Package graph implements a dataflow execution engine for composing
// LLM-augmented agent nodes into a directed graph and driving runs through
// it.
//
// Each node declares an input schema, an output schema, and an Execute
// sequence that yields partial outputs and render updates. The runtime wires
// nodes together by field-level bindings, propagates values across a hot
// event stream, decides when a node has received enough input to fire, and
// signals skips through the graph so downstream accumulators never hang.
//
// # Building a graph
//
//	agent := graph.New()
//	a, _ := agent.AddNode("a", producerNode)
//	b, _ := agent.AddNode("b", consumerNode)
//	b.Bind(graph.Bindings{"v": a.Output("x")})
//
//	inv := a.Invoke(ctx, map[string]any{})
//	out, err := inv.Result(ctx)
//
// Bindings accept a single provider, a []*Provider for array bindings, or
// any other value as a literal. Tool nodes are offered to LLM nodes through
// their Schema provider; UI fragments travel through Render providers as
// per-run streams.
//
// # Runs
//
// A run is one logical traversal of the graph. Every event bound to a node
// activation carries the run id; for each (run, node) pair at most one of
// RunCompleted or RunSkipped is emitted. A node that is neither invoked in the
// run, nor bound to an output producer of the run, nor skipped as an unused
// tool emits neither. A node whose required upstream
// values never arrive is skipped, and tool nodes that an LLM chose not to
// call receive a synthetic skip when their consumer finishes, so render and
// output bindings on them terminate cleanly.
package graph
