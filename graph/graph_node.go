package graph

import (
	"context"
	"sync"
)

// Bindings maps a target input field to its source: a *Provider, a
// []*Provider (array binding), or any other value, which is bound as a
// literal.
type Bindings map[string]any

// outputMapping is one (source node, source field) -> target field edge.
type outputMapping struct {
	sourceID    string
	sourceField string
	targetField string
	isArray     bool
}

type schemaSource struct {
	provider    *Provider
	targetField string
	isArray     bool
}

type renderSource struct {
	provider    *Provider
	targetField string
	isArray     bool
}

type literalBinding struct {
	targetField string
	value       any
}

// fieldGroup tracks per-target-field delivery to OnInputEvent. Scalar groups
// deliver after one value, array groups after their declared length, and
// leftover partial arrays deliver at settlement.
type fieldGroup struct {
	cap       int
	isArray   bool
	values    []any
	delivered bool
}

// directInvocation carries the input supplied to a direct Invoke on a bound
// node, merged over the accumulated bound input when the node fires.
type directInvocation struct {
	ctx   context.Context
	input map[string]any
	inv   *Invocation
}

// runState is the per-run routing table of one bound graph node: the input
// accumulator, the producers still expected, and the delivery bookkeeping
// that replaces the reference's reactive operator chains.
type runState struct {
	run RunRef
	tc  *Context

	acc              *Accumulator
	pendingProducers map[string]struct{}
	mappingsLeft     int
	groups           map[string]*fieldGroup
	schemaPending    map[string]*GraphNode

	direct  *directInvocation
	settled bool
	failed  error
}

// GraphNode is one node instance added to a graph. It owns the binding of
// its inputs to upstream value providers, correlates stream events by run,
// fires Execute when its input is complete, and republishes outputs.
type GraphNode struct {
	agent  *GraphAgent
	id     string
	node   AgentNode
	config any
	meta   Metadata
	ref    NodeRef

	mu sync.Mutex

	// provider caches
	outputProviders map[string]*Provider
	schemaProvider  *Provider
	renderProvider  *Provider

	// binding tables, fixed at Bind
	bound           bool
	outputMappings  []outputMapping
	outputSourceIDs map[string]struct{}
	schemaSources   []schemaSource
	renderSources   []renderSource
	literals        []literalBinding
	groupCaps       map[string]int
	groupArray      map[string]bool
	expected        int

	runs            map[string]*runState
	pendingDirect   map[string]*directInvocation
	renderRuns      map[string]*RenderStream
	terminalRuns    map[string]EventType
	terminalClaimed map[string]bool
	renderWatchers  map[int]func(RunRef, *RenderStream)
	nextWatcherID   int
}

func newGraphNode(agent *GraphAgent, id string, node AgentNode, config any) *GraphNode {
	meta := node.Metadata()
	n := &GraphNode{
		agent:           agent,
		id:              id,
		node:            node,
		config:          config,
		meta:            meta,
		ref:             NodeRef{ID: id, Type: meta.ID, Version: meta.Version},
		outputProviders: make(map[string]*Provider),
		runs:            make(map[string]*runState),
		pendingDirect:   make(map[string]*directInvocation),
		renderRuns:      make(map[string]*RenderStream),
		terminalRuns:    make(map[string]EventType),
		terminalClaimed: make(map[string]bool),
		renderWatchers:  make(map[int]func(RunRef, *RenderStream)),
	}
	agent.stream.Subscribe(n.houseKeep)
	return n
}

// ID returns the graph-local node id.
func (n *GraphNode) ID() string { return n.id }

// Ref returns the node's wire reference.
func (n *GraphNode) Ref() NodeRef { return n.ref }

// Metadata returns the wrapped node's descriptor.
func (n *GraphNode) Metadata() Metadata { return n.meta }

// Agent returns the owning graph agent.
func (n *GraphNode) Agent() *GraphAgent { return n.agent }

// ---------------------------------------------------------------------------
// Accessors

// Output returns the provider for one output field, memoized per field. The
// field is not checked against the output schema: the provider carries any
// value the node publishes under that name.
func (n *GraphNode) Output(field string) *Provider {
	n.mu.Lock()
	defer n.mu.Unlock()
	if p, ok := n.outputProviders[field]; ok {
		return p
	}
	p := &Provider{kind: ProviderOutput, node: n, sourceField: field}
	n.outputProviders[field] = p
	return p
}

// Schema returns the provider carrying the node's tool descriptor. The
// descriptor is run-independent.
func (n *GraphNode) Schema() *Provider {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.schemaProvider == nil {
		n.schemaProvider = &Provider{kind: ProviderSchema, node: n, sourceField: SourceFieldSchema}
	}
	return n.schemaProvider
}

// Render returns the provider exposing the node's per-run render streams.
func (n *GraphNode) Render() *Provider {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.renderProvider == nil {
		n.renderProvider = &Provider{kind: ProviderRender, node: n, sourceField: SourceFieldRender}
	}
	return n.renderProvider
}

// EachRun registers a watcher invoked with the node's render stream for every
// newly seeded run. The returned function removes the watcher.
func (n *GraphNode) EachRun(watcher func(RunRef, *RenderStream)) (remove func()) {
	n.mu.Lock()
	id := n.nextWatcherID
	n.nextWatcherID++
	n.renderWatchers[id] = watcher
	n.mu.Unlock()
	return func() {
		n.mu.Lock()
		delete(n.renderWatchers, id)
		n.mu.Unlock()
	}
}

func (n *GraphNode) toolDescriptor() ToolDescriptor {
	var params map[string]any
	if n.meta.Input != nil {
		params = n.meta.Input.JSONSchema()
	}
	return ToolDescriptor{
		ID:          n.id,
		Name:        n.meta.Name,
		Description: n.meta.Description,
		Parameters:  params,
		Node:        n,
	}
}

// renderStreamFor returns the node's render stream for a run, creating it
// lazily. Streams for runs that already ended are created closed.
func (n *GraphNode) renderStreamFor(runID string) *RenderStream {
	n.mu.Lock()
	defer n.mu.Unlock()
	if s, ok := n.renderRuns[runID]; ok {
		return s
	}
	s := NewStream[RenderUpdate]()
	if _, done := n.terminalRuns[runID]; done {
		s.Close()
		return s
	}
	n.renderRuns[runID] = s
	return s
}

// ---------------------------------------------------------------------------
// Binding

// Bind wires the node's input fields to upstream value providers. Values may
// be a *Provider, a []*Provider (array binding), or a literal. Bind must be
// called before the first run reaches the node and at most once.
func (n *GraphNode) Bind(edges Bindings) *GraphNode {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.bound {
		panic("graph: Bind called twice on node " + n.id)
	}
	n.bound = true
	n.outputSourceIDs = make(map[string]struct{})
	n.groupCaps = make(map[string]int)
	n.groupArray = make(map[string]bool)

	for target, source := range edges {
		switch src := source.(type) {
		case *Provider:
			n.addProviderLocked(target, src, false)
		case []*Provider:
			n.groupArray[target] = true
			for _, p := range src {
				n.addProviderLocked(target, p, true)
			}
		default:
			n.literals = append(n.literals, literalBinding{targetField: target, value: src})
			n.groupCaps[target]++
			n.expected++
		}
	}

	n.agent.stream.Subscribe(n.routeEvent)
	return n
}

func (n *GraphNode) addProviderLocked(target string, p *Provider, isArray bool) {
	switch p.Kind() {
	case ProviderOutput:
		n.outputMappings = append(n.outputMappings, outputMapping{
			sourceID:    p.Node().id,
			sourceField: p.SourceField(),
			targetField: target,
			isArray:     isArray,
		})
		n.outputSourceIDs[p.Node().id] = struct{}{}
	case ProviderSchema:
		n.schemaSources = append(n.schemaSources, schemaSource{provider: p, targetField: target, isArray: isArray})
	case ProviderRender:
		n.renderSources = append(n.renderSources, renderSource{provider: p, targetField: target, isArray: isArray})
	}
	n.groupCaps[target]++
	n.expected++
}

// ---------------------------------------------------------------------------
// Event routing (bound nodes only)

func (n *GraphNode) routeEvent(e AgentEvent) {
	if e.Run == nil {
		return
	}
	switch e.Type {
	case EventRunInvoked:
		n.ensureRunState(*e.Run)
	case EventOutput:
		n.routeOutput(e)
	case EventRunCompleted, EventRunSkipped:
		n.routeTerminal(e)
	}
}

// ensureRunState creates the per-run routing table and performs the eager
// deliveries: literals, schema descriptors, and render stream handles all
// arrive when the run is seeded.
func (n *GraphNode) ensureRunState(run RunRef) *runState {
	n.mu.Lock()
	if st, ok := n.runs[run.ID]; ok {
		// A direct invocation may be joining a run whose state already
		// exists; adopt it so settlement can fire.
		if direct, pending := n.pendingDirect[run.ID]; pending && st.direct == nil {
			delete(n.pendingDirect, run.ID)
			st.direct = direct
			if !st.settled {
				st.tc.ctx = direct.ctx
			}
		}
		n.mu.Unlock()
		return st
	}
	if _, done := n.terminalRuns[run.ID]; done {
		n.mu.Unlock()
		return nil
	}

	st := &runState{
		run:              run,
		acc:              NewAccumulator(),
		pendingProducers: make(map[string]struct{}),
		mappingsLeft:     len(n.outputMappings),
		groups:           make(map[string]*fieldGroup),
		schemaPending:    make(map[string]*GraphNode),
	}
	st.tc = &Context{ctx: context.Background(), run: run, node: n.ref, cfg: n.config, agent: n.agent}
	if direct, ok := n.pendingDirect[run.ID]; ok {
		delete(n.pendingDirect, run.ID)
		st.direct = direct
		st.tc.ctx = direct.ctx
	}

	for id := range n.outputSourceIDs {
		st.pendingProducers[id] = struct{}{}
	}
	for target, limit := range n.groupCaps {
		st.groups[target] = &fieldGroup{cap: limit, isArray: n.groupArray[target]}
	}
	for _, src := range n.schemaSources {
		st.schemaPending[src.provider.Node().id] = src.provider.Node()
	}
	n.runs[run.ID] = st
	n.mu.Unlock()

	runRef := &RunRef{ID: run.ID}

	// Eager deliveries. Each goes through the shared accumulator and the
	// per-field delivery path.
	for _, lit := range n.literals {
		n.accept(st, InputEvent{Run: runRef, TargetField: lit.targetField, Value: lit.value})
	}
	for _, src := range n.schemaSources {
		desc := src.provider.Node().toolDescriptor()
		n.accept(st, InputEvent{Run: runRef, TargetField: src.targetField, IsArray: src.isArray, Value: desc})
	}
	for _, src := range n.renderSources {
		inner := src.provider.renderStreamForRun(run.ID)
		n.accept(st, InputEvent{Run: runRef, TargetField: src.targetField, IsArray: src.isArray, Value: inner})
	}

	n.trySettle(st)
	return st
}

// accept runs one mapped value through the reducer and the per-field
// delivery path, invoking OnInputEvent when a field group fills.
func (n *GraphNode) accept(st *runState, ev InputEvent) {
	n.mu.Lock()
	if st.settled {
		n.mu.Unlock()
		return
	}
	if err := st.acc.Reduce(ev); err != nil {
		st.failed = err
		n.mu.Unlock()
		n.agent.logger().Warn("input reducer failed for node %s: %v", n.id, err)
		return
	}
	var deliver map[string]any
	if ev.Value != nil {
		g := st.groups[ev.TargetField]
		if g != nil && !g.delivered {
			g.values = append(g.values, ev.Value)
			if len(g.values) >= g.cap {
				g.delivered = true
				deliver = map[string]any{ev.TargetField: groupValue(g)}
			}
		}
	}
	tc := st.tc
	n.mu.Unlock()

	if deliver != nil {
		n.node.OnInputEvent(tc, deliver)
	}
}

func groupValue(g *fieldGroup) any {
	if g.isArray {
		vals := make([]any, len(g.values))
		copy(vals, g.values)
		return vals
	}
	return g.values[0]
}

func (n *GraphNode) routeOutput(e AgentEvent) {
	n.mu.Lock()
	st, ok := n.runs[e.Run.ID]
	if !ok || st.settled {
		n.mu.Unlock()
		return
	}
	if _, isSource := n.outputSourceIDs[e.Node.ID]; !isSource {
		n.mu.Unlock()
		return
	}

	type hit struct {
		mapping outputMapping
		value   any
	}
	var hits []hit
	for _, m := range n.outputMappings {
		if m.sourceID != e.Node.ID {
			continue
		}
		if st.mappingsLeft == 0 {
			break
		}
		if v, ok := e.Output[m.sourceField]; ok {
			st.mappingsLeft--
			hits = append(hits, hit{mapping: m, value: v})
		}
	}
	n.mu.Unlock()

	for _, h := range hits {
		n.accept(st, InputEvent{
			Run:         e.Run,
			TargetField: h.mapping.targetField,
			IsArray:     h.mapping.isArray,
			Value:       h.value,
		})
	}
}

func (n *GraphNode) routeTerminal(e AgentEvent) {
	n.mu.Lock()
	st, ok := n.runs[e.Run.ID]
	if !ok {
		n.mu.Unlock()
		return
	}
	delete(st.schemaPending, e.Node.ID)
	if _, isSource := n.outputSourceIDs[e.Node.ID]; isSource {
		delete(st.pendingProducers, e.Node.ID)
	}
	n.mu.Unlock()

	n.trySettle(st)
}

// trySettle checks the firing precondition: every upstream output producer
// has gone terminal. Once both sides of the zip are ready, the node either
// fires Execute (full input) or publishes a skip. Nodes with no output
// producers fire only when directly invoked, so a run seeded elsewhere does
// not trigger every idle node in the graph.
func (n *GraphNode) trySettle(st *runState) {
	n.mu.Lock()
	if st.settled || len(st.pendingProducers) > 0 {
		n.mu.Unlock()
		return
	}
	if len(n.outputSourceIDs) == 0 && st.direct == nil {
		n.mu.Unlock()
		return
	}
	st.settled = true

	// Flush partial array groups that never reached their cap.
	var flush []map[string]any
	for field, g := range st.groups {
		if !g.delivered && len(g.values) > 0 {
			g.delivered = true
			flush = append(flush, map[string]any{field: groupValue(g)})
		}
	}

	failed := st.failed
	full := st.acc.Count == n.expected
	direct := st.direct
	tc := st.tc
	n.mu.Unlock()

	for _, partial := range flush {
		n.node.OnInputEvent(tc, partial)
	}

	switch {
	case failed != nil:
		n.finishRun(st, nil, failed, true)
	case full:
		input := make(map[string]any, len(st.acc.Input))
		for k, v := range st.acc.Input {
			input[k] = v
		}
		if direct != nil {
			for k, v := range direct.input {
				input[k] = v
			}
			tc.ctx = direct.ctx
		}
		go n.execute(st, tc, input)
	default:
		n.agent.logger().Debug("node %s skipping run %s: %d/%d inputs", n.id, st.run.ID, st.acc.Count, n.expected)
		n.finishRun(st, nil, ErrRunSkipped, true)
	}
}

// ---------------------------------------------------------------------------
// Execution

// execute drives the node's generator, publishing each partial yield as an
// Output event and merging yields into the final output.
func (n *GraphNode) execute(st *runState, tc *Context, input map[string]any) {
	runRef := &RunRef{ID: st.run.ID}
	merged := make(map[string]any)

	var execErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				execErr = &NodeExecutionError{Node: n.id, Run: st.run.ID, Err: panicError(r)}
			}
		}()
		for out, err := range n.node.Execute(tc, input) {
			if err != nil {
				execErr = &NodeExecutionError{Node: n.id, Run: st.run.ID, Err: err}
				return
			}
			if len(out) == 0 {
				continue
			}
			n.agent.stream.SendOutput(runRef, n.ref, out)
			for k, v := range out {
				merged[k] = v
			}
		}
	}()

	n.finishRun(st, merged, execErr, false)
}

// finishRun publishes the terminal event for (run, node), resolves any
// pending direct invocation, propagates skips to schema-bound upstreams that
// never ran, and drops the run table entry.
func (n *GraphNode) finishRun(st *runState, output map[string]any, err error, skipped bool) {
	// Detach the invocation and the skip obligations before publishing the
	// terminal event, so the node's own housekeeping (which runs during
	// dispatch) does not resolve the invocation as skipped.
	n.mu.Lock()
	direct := st.direct
	st.direct = nil
	pending := make([]*GraphNode, 0, len(st.schemaPending))
	for _, src := range st.schemaPending {
		pending = append(pending, src)
	}
	st.schemaPending = map[string]*GraphNode{}
	delete(n.runs, st.run.ID)
	n.mu.Unlock()

	if !n.claimTerminal(st.run.ID) {
		// Another node already ended this (run, node) pair with a synthetic
		// skip; the invocation still has to resolve.
		if direct != nil {
			direct.inv.resolve(nil, ErrRunSkipped)
		}
		return
	}

	// Schema-bound upstreams that the run never exercised terminate with a
	// synthetic skip so downstream bindings on them settle. These go out
	// before this node's own terminal event.
	for _, src := range pending {
		src.skipRun(st.run.ID)
	}

	eventType := EventRunCompleted
	if skipped {
		eventType = EventRunSkipped
	}
	n.agent.stream.Next(AgentEvent{Type: eventType, Run: &RunRef{ID: st.run.ID}, Node: n.ref})

	if direct != nil {
		direct.inv.resolve(output, err)
	}
}

// skipRun issues a synthetic RunSkipped for this node, unless a terminal
// event for the run was already claimed.
func (n *GraphNode) skipRun(runID string) {
	if !n.claimTerminal(runID) {
		return
	}
	n.agent.stream.Next(AgentEvent{Type: EventRunSkipped, Run: &RunRef{ID: runID}, Node: n.ref})
}

// claimTerminal reserves the right to publish the single terminal event for
// (run, node). The first claimant wins.
func (n *GraphNode) claimTerminal(runID string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.terminalClaimed[runID] {
		return false
	}
	if _, done := n.terminalRuns[runID]; done {
		return false
	}
	n.terminalClaimed[runID] = true
	return true
}

// ---------------------------------------------------------------------------
// Housekeeping: every node, bound or not, tracks its own events.

func (n *GraphNode) houseKeep(e AgentEvent) {
	if e.Run == nil || e.Node.ID != n.id {
		if e.Run != nil && e.Type == EventRunInvoked {
			n.notifyRenderWatchers(*e.Run)
		}
		return
	}

	switch e.Type {
	case EventRender:
		stream := n.renderStreamFor(e.Run.ID)
		if e.Render != nil {
			stream.Push(*e.Render)
		}
	case EventRunCompleted, EventRunSkipped:
		n.mu.Lock()
		n.terminalRuns[e.Run.ID] = e.Type
		delete(n.terminalClaimed, e.Run.ID)
		stream := n.renderRuns[e.Run.ID]
		delete(n.renderRuns, e.Run.ID)
		var direct *directInvocation
		if st := n.runs[e.Run.ID]; st != nil {
			direct = st.direct
			st.direct = nil
			delete(n.runs, e.Run.ID)
		}
		n.mu.Unlock()

		if stream != nil {
			stream.Close()
		}
		// A synthetic skip may race a pending direct invocation; resolve it.
		if direct != nil {
			direct.inv.resolve(nil, ErrRunSkipped)
		}
	case EventRunInvoked:
		n.notifyRenderWatchers(*e.Run)
	}
}

func (n *GraphNode) notifyRenderWatchers(run RunRef) {
	n.mu.Lock()
	if len(n.renderWatchers) == 0 {
		n.mu.Unlock()
		return
	}
	watchers := make([]func(RunRef, *RenderStream), 0, len(n.renderWatchers))
	for _, w := range n.renderWatchers {
		watchers = append(watchers, w)
	}
	n.mu.Unlock()

	stream := n.renderStreamFor(run.ID)
	for _, w := range watchers {
		w(run, stream)
	}
}

// ---------------------------------------------------------------------------
// Direct invocation

type invokeOptions struct {
	run *RunRef
}

// InvokeOption configures a direct invocation.
type InvokeOption func(*invokeOptions)

// WithRun joins an existing run instead of seeding a new one. No RunInvoked
// event is emitted.
func WithRun(run RunRef) InvokeOption {
	return func(o *invokeOptions) {
		o.run = &RunRef{ID: run.ID}
	}
}

// Invocation is the handle returned by Invoke: the run reference plus a
// promise for the node's merged output.
type Invocation struct {
	Run RunRef

	once   sync.Once
	done   chan struct{}
	output map[string]any
	err    error
}

func newInvocation(run RunRef) *Invocation {
	return &Invocation{Run: run, done: make(chan struct{})}
}

func (inv *Invocation) resolve(output map[string]any, err error) {
	inv.once.Do(func() {
		inv.output = output
		inv.err = err
		close(inv.done)
	})
}

// Result blocks until the node's generator finished and returns the merged
// output. A skipped run returns ErrRunSkipped.
func (inv *Invocation) Result(ctx context.Context) (map[string]any, error) {
	select {
	case <-inv.done:
		return inv.output, inv.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Invoke runs the node. Without WithRun it seeds a fresh run on the stream;
// bound inputs are collected from the run as usual and the supplied input is
// merged over them when the node fires. Unbound nodes execute immediately
// with the supplied input.
func (n *GraphNode) Invoke(ctx context.Context, input map[string]any, opts ...InvokeOption) *Invocation {
	var options invokeOptions
	for _, opt := range opts {
		opt(&options)
	}

	run := RunRef{}
	joining := options.run != nil
	if joining {
		run = *options.run
	} else {
		run = RunRef{ID: n.agent.newRunID()}
	}
	inv := newInvocation(run)

	n.mu.Lock()
	bound := n.bound
	n.mu.Unlock()

	if !bound {
		if !joining {
			n.agent.stream.Next(AgentEvent{Type: EventRunInvoked, Run: &RunRef{ID: run.ID}, Node: n.ref})
		}
		tc := &Context{ctx: ctx, run: run, node: n.ref, cfg: n.config, agent: n.agent}
		st := &runState{run: run, tc: tc, direct: &directInvocation{ctx: ctx, input: input, inv: inv}}
		n.mu.Lock()
		n.runs[run.ID] = st
		n.mu.Unlock()
		go n.execute(st, tc, input)
		return inv
	}

	// Register the direct input first so the state picks it up the moment it
	// is created, whether that happens during the RunInvoked dispatch below
	// or in the explicit ensureRunState call.
	n.mu.Lock()
	n.pendingDirect[run.ID] = &directInvocation{ctx: ctx, input: input, inv: inv}
	n.mu.Unlock()

	if !joining {
		n.agent.stream.Next(AgentEvent{Type: EventRunInvoked, Run: &RunRef{ID: run.ID}, Node: n.ref})
	}

	st := n.ensureRunState(run)
	if st == nil {
		n.mu.Lock()
		delete(n.pendingDirect, run.ID)
		n.mu.Unlock()
		inv.resolve(nil, ErrRunSkipped)
		return inv
	}
	n.trySettle(st)
	return inv
}
