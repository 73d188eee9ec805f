package graph

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/smallnest/agentgraph/log"
)

// GraphAgent composes agent nodes into a dataflow graph. It owns the event
// stream and the node table; nodes are added with AddNode and wired with
// GraphNode.Bind, then a run is seeded through GraphNode.Invoke on the entry
// node.
type GraphAgent struct {
	stream *EventStream

	mu         sync.Mutex
	nodes      map[string]*GraphNode
	services   map[string]any
	runGlobals map[string]map[string]any
	log        log.Logger
}

// New creates an empty graph agent.
func New() *GraphAgent {
	return &GraphAgent{
		stream:     NewEventStream(),
		nodes:      make(map[string]*GraphNode),
		services:   make(map[string]any),
		runGlobals: make(map[string]map[string]any),
		log:        log.Component(log.Default(), "graph"),
	}
}

// Stream returns the agent's event stream. External consumers may subscribe;
// publishing is normally left to the runtime.
func (a *GraphAgent) Stream() *EventStream { return a.stream }

// SetLogger replaces the agent's logger. Messages are tagged with the
// "graph" component.
func (a *GraphAgent) SetLogger(logger log.Logger) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.log = log.Component(logger, "graph")
}

func (a *GraphAgent) logger() log.Logger {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.log
}

// RegisterService exposes a dependency-injected service to node code via
// Context.Resolve.
func (a *GraphAgent) RegisterService(key string, value any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.services[key] = value
}

// AddNode adds a node instance under a graph-local id and calls its Init
// hook with the synthetic init run. The id must be unique within the graph.
func (a *GraphAgent) AddNode(id string, node AgentNode, config ...any) (*GraphNode, error) {
	var cfg any
	if len(config) > 0 {
		cfg = config[0]
	}

	a.mu.Lock()
	if _, exists := a.nodes[id]; exists {
		a.mu.Unlock()
		return nil, ErrDuplicateNode
	}
	gn := newGraphNode(a, id, node, cfg)
	a.nodes[id] = gn
	a.mu.Unlock()

	node.Init(&Context{
		ctx:   context.Background(),
		run:   RunRef{ID: InitRunID},
		node:  gn.ref,
		cfg:   cfg,
		agent: a,
	})

	a.logger().Debug("added node %s (%s@%s)", id, gn.meta.ID, gn.meta.Version)
	return gn, nil
}

// Node returns the graph node registered under the given id.
func (a *GraphAgent) Node(id string) (*GraphNode, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	gn, ok := a.nodes[id]
	return gn, ok
}

// Nodes returns the graph-local ids of all registered nodes.
func (a *GraphAgent) Nodes() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	ids := make([]string, 0, len(a.nodes))
	for id := range a.nodes {
		ids = append(ids, id)
	}
	return ids
}

func (a *GraphAgent) newRunID() string {
	return uuid.New().String()
}

// setRunState records a run-scoped global value.
func (a *GraphAgent) setRunState(runID, key string, value any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	m := a.runGlobals[runID]
	if m == nil {
		m = make(map[string]any)
		a.runGlobals[runID] = m
	}
	m[key] = value
}

// resolve looks up run-scoped state first, then agent-level services.
func (a *GraphAgent) resolve(runID, key string) (any, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if m, ok := a.runGlobals[runID]; ok {
		if v, ok := m[key]; ok {
			return v, true
		}
	}
	v, ok := a.services[key]
	return v, ok
}

// ClearRun drops the run-scoped global state of a finished run.
func (a *GraphAgent) ClearRun(runID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.runGlobals, runID)
}
