package graph

import "context"

// Context is the per-invocation handle passed to node code. It carries the
// run and node identity, the node config, and the imperative output/render
// surfaces. A Context is only valid for the invocation it was created for.
type Context struct {
	ctx   context.Context
	run   RunRef
	node  NodeRef
	cfg   any
	agent *GraphAgent
}

// Context returns the Go context of the invocation.
func (c *Context) Context() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

// Run returns the run reference of the invocation.
func (c *Context) Run() RunRef { return c.run }

// Node returns the node reference of the invocation.
func (c *Context) Node() NodeRef { return c.node }

// Config returns the config value passed at AddNode.
func (c *Context) Config() any { return c.cfg }

// SendOutput publishes a partial output map on the stream, equivalent to
// yielding it from Execute but imperative. Sink nodes use it from
// OnInputEvent.
func (c *Context) SendOutput(output map[string]any) {
	if c.agent == nil {
		return
	}
	c.agent.stream.SendOutput(&RunRef{ID: c.run.ID}, c.node, output)
}

// Render publishes a Render event for the given step and returns a handle
// whose Update republishes new data for the same step.
func (c *Context) Render(step string, data any) *RenderHandle {
	h := &RenderHandle{tc: c, step: step}
	h.Update(data)
	return h
}

// Resolve looks up a dependency-injected service or a global-state value
// recorded for this run. Run-scoped state takes precedence over agent-level
// services.
func (c *Context) Resolve(key string) (any, bool) {
	if c.agent == nil {
		return nil, false
	}
	return c.agent.resolve(c.run.ID, key)
}

// SetGlobalState records a value under a well-known key for this run,
// visible to every node context of the same run.
func (c *Context) SetGlobalState(key string, value any) {
	if c.agent == nil {
		return
	}
	c.agent.setRunState(c.run.ID, key, value)
}

// RenderHandle addresses one render step for subsequent updates.
type RenderHandle struct {
	tc   *Context
	step string
}

// Step returns the opaque render id of the handle.
func (h *RenderHandle) Step() string { return h.step }

// Update publishes new data for the handle's step.
func (h *RenderHandle) Update(data any) {
	if h.tc.agent == nil {
		return
	}
	h.tc.agent.stream.SendRenderUpdate(
		&RunRef{ID: h.tc.run.ID},
		h.tc.node,
		RenderUpdate{Step: h.step, Data: data},
	)
}
