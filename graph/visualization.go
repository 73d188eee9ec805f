package graph

import (
	"fmt"
	"sort"
	"strings"
)

// Exporter renders the agent graph topology in exportable formats.
type Exporter struct {
	agent *GraphAgent
}

// NewExporter creates a new graph exporter for the given agent.
func NewExporter(agent *GraphAgent) *Exporter {
	return &Exporter{agent: agent}
}

// MermaidOptions defines configuration for Mermaid diagram generation
type MermaidOptions struct {
	// Direction of the flowchart (e.g., "TD", "LR")
	Direction string
}

// DrawMermaid generates a Mermaid diagram of the graph: one box per node and
// one labeled edge per binding, annotated with the edge kind for schema and
// render bindings.
func (ge *Exporter) DrawMermaid() string {
	return ge.DrawMermaidWithOptions(MermaidOptions{Direction: "TD"})
}

// DrawMermaidWithOptions generates a Mermaid diagram with custom options
func (ge *Exporter) DrawMermaidWithOptions(opts MermaidOptions) string {
	var sb strings.Builder

	direction := opts.Direction
	if direction == "" {
		direction = "TD"
	}
	sb.WriteString(fmt.Sprintf("flowchart %s\n", direction))

	ge.agent.mu.Lock()
	ids := make([]string, 0, len(ge.agent.nodes))
	for id := range ge.agent.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		node := ge.agent.nodes[id]
		sb.WriteString(fmt.Sprintf("    %s[\"%s\"]\n", id, node.meta.Name))
	}

	for _, id := range ids {
		node := ge.agent.nodes[id]
		node.mu.Lock()
		for _, m := range node.outputMappings {
			sb.WriteString(fmt.Sprintf("    %s -- \"%s→%s\" --> %s\n", m.sourceID, m.sourceField, m.targetField, id))
		}
		for _, s := range node.schemaSources {
			sb.WriteString(fmt.Sprintf("    %s -. \"schema→%s\" .-> %s\n", s.provider.Node().id, s.targetField, id))
		}
		for _, r := range node.renderSources {
			for _, src := range renderSourceNodes(r.provider) {
				sb.WriteString(fmt.Sprintf("    %s -. \"render→%s\" .-> %s\n", src, r.targetField, id))
			}
		}
		node.mu.Unlock()
	}
	ge.agent.mu.Unlock()

	return sb.String()
}

// renderSourceNodes resolves the node ids behind a render provider,
// flattening merged providers.
func renderSourceNodes(p *Provider) []string {
	if p.Node() != nil {
		return []string{p.Node().id}
	}
	var ids []string
	for _, src := range p.merged {
		ids = append(ids, renderSourceNodes(src)...)
	}
	return ids
}
