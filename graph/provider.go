package graph

import (
	"context"
	"sync"
)

// ProviderKind classifies what a value provider exposes.
type ProviderKind string

const (
	// ProviderOutput exposes one output field of a node.
	ProviderOutput ProviderKind = "output"

	// ProviderSchema exposes a node's tool descriptor.
	ProviderSchema ProviderKind = "schema"

	// ProviderRender exposes a node's per-run render streams.
	ProviderRender ProviderKind = "render"
)

// SourceFieldSchema is the source field name carried by schema providers.
const SourceFieldSchema = "schema"

// SourceFieldRender is the source field name carried by render providers.
const SourceFieldRender = "__render__"

// ToolDescriptor describes a node offered to an LLM as a callable tool.
// Node points directly at the tool's GraphNode; the tool-dispatch path uses it
// to re-invoke the tool within the same run.
type ToolDescriptor struct {
	ID          string
	Name        string
	Description string
	Parameters  map[string]any
	Node        *GraphNode
}

// Provider is the typed handle a graph node exposes for each of its outputs,
// its schema, and its render stream. It is both a subscribable surface and a
// metadata tag that Bind uses to classify the source.
type Provider struct {
	kind        ProviderKind
	node        *GraphNode
	sourceField string

	// merged is set only on render providers built by MergeRenderStreams.
	merged     []*Provider
	mergedMu   sync.Mutex
	mergedRuns map[string]*RenderStream
}

// Kind returns the provider classification.
func (p *Provider) Kind() ProviderKind { return p.kind }

// Node returns the graph node backing the provider, or nil for merged render
// providers.
func (p *Provider) Node() *GraphNode { return p.node }

// SourceField returns the output field name for output providers,
// SourceFieldSchema for schema providers, and SourceFieldRender for render
// providers.
func (p *Provider) SourceField() string { return p.sourceField }

// OutputValue is one published value observed through an output provider.
type OutputValue struct {
	Run   RunRef
	Field string
	Value any
}

// Subscribe observes the provider's output field on the live stream. Only
// output providers support Subscribe; other kinds return a no-op
// unsubscribe. Historical values are not replayed.
func (p *Provider) Subscribe(handler func(OutputValue)) (unsubscribe func()) {
	if p.kind != ProviderOutput || p.node == nil {
		return func() {}
	}
	stream := p.node.agent.stream
	nodeID := p.node.id
	field := p.sourceField
	return stream.Subscribe(func(e AgentEvent) {
		if e.Type != EventOutput || e.Node.ID != nodeID || e.Run == nil {
			return
		}
		if v, ok := e.Output[field]; ok && v != nil {
			handler(OutputValue{Run: *e.Run, Field: field, Value: v})
		}
	})
}

// Select resolves the first value the provider yields for the given run.
//
//   - output: the first matching Output event published after the call;
//     resolves with ErrNoValue if the node's terminal event arrives first.
//   - schema: the node's tool descriptor, built on each call, immediately.
//   - render: the per-run render stream, immediately.
func (p *Provider) Select(ctx context.Context, runID string) (any, error) {
	switch p.kind {
	case ProviderSchema:
		return p.node.toolDescriptor(), nil
	case ProviderRender:
		return p.renderStreamForRun(runID), nil
	}

	type result struct {
		value any
		err   error
	}
	done := make(chan result, 1)
	var once sync.Once

	stream := p.node.agent.stream
	nodeID := p.node.id
	field := p.sourceField

	unsubscribe := stream.Subscribe(func(e AgentEvent) {
		if e.Run == nil || e.Run.ID != runID || e.Node.ID != nodeID {
			return
		}
		switch {
		case e.Type == EventOutput:
			if v, ok := e.Output[field]; ok && v != nil {
				once.Do(func() { done <- result{value: v} })
			}
		case e.Terminal():
			once.Do(func() { done <- result{err: ErrNoValue} })
		}
	})
	defer unsubscribe()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// renderStreamForRun resolves the inner render stream for one run. For
// node-backed providers this is the node's cached stream; merged providers
// build a combined stream on first access.
func (p *Provider) renderStreamForRun(runID string) *RenderStream {
	if p.node != nil {
		return p.node.renderStreamFor(runID)
	}
	return p.mergedStreamFor(runID)
}

// mergedStreamFor interleaves the source providers' inner streams for one
// run into a single stream, closing when every source stream has closed.
// The reference design relied on subscription-timing workarounds here; this
// implementation multicasts explicitly instead.
func (p *Provider) mergedStreamFor(runID string) *RenderStream {
	p.mergedMu.Lock()
	if p.mergedRuns == nil {
		p.mergedRuns = make(map[string]*RenderStream)
	}
	if existing, ok := p.mergedRuns[runID]; ok {
		p.mergedMu.Unlock()
		return existing
	}
	out := NewStream[RenderUpdate]()
	p.mergedRuns[runID] = out
	p.mergedMu.Unlock()

	var wg sync.WaitGroup
	for _, src := range p.merged {
		inner := src.renderStreamForRun(runID)
		if inner == nil {
			continue
		}
		wg.Add(1)
		go func(in *RenderStream) {
			defer wg.Done()
			for {
				u, err := in.Recv(context.Background())
				if err != nil {
					return
				}
				out.Push(u)
			}
		}(inner)
	}
	go func() {
		wg.Wait()
		out.Close()
		p.mergedMu.Lock()
		delete(p.mergedRuns, runID)
		p.mergedMu.Unlock()
	}()

	return out
}

// MergeRenderStreams merges multiple render providers into one render
// provider keyed by run id. A sink bound to the merged provider receives a
// single inner stream per run interleaving every source's updates. Panics if
// a non-render provider is passed.
func MergeRenderStreams(providers ...*Provider) *Provider {
	for _, p := range providers {
		if p.kind != ProviderRender {
			panic("graph: MergeRenderStreams requires render providers")
		}
	}
	return &Provider{
		kind:        ProviderRender,
		sourceField: SourceFieldRender,
		merged:      providers,
	}
}
