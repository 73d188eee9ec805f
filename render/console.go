// Package render provides a console consumer for render streams: a debug
// stand-in for the UI layer that normally mounts components from render
// updates.
package render

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/smallnest/agentgraph/graph"
)

// Console pretty-prints per-run render updates of a graph node to a writer.
type Console struct {
	mu sync.Mutex
	w  io.Writer

	headerStyle lipgloss.Style
	stepStyle   lipgloss.Style
	dataStyle   lipgloss.Style
}

// NewConsole creates a console renderer writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{
		w:           w,
		headerStyle: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		stepStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		dataStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("7")),
	}
}

// Watch follows a node's render streams: every run gets a header line, every
// update a step/data line. The returned function stops watching; streams
// already being drained finish on their own when their run ends.
func (c *Console) Watch(node *graph.GraphNode) (stop func()) {
	return node.EachRun(func(run graph.RunRef, stream *graph.RenderStream) {
		c.printf("%s %s\n",
			c.headerStyle.Render(fmt.Sprintf("▌%s", node.ID())),
			c.dataStyle.Render(fmt.Sprintf("run %s", run.ID)),
		)
		go c.drain(stream)
	})
}

func (c *Console) drain(stream *graph.RenderStream) {
	for update := range stream.Seq(context.Background()) {
		c.printf("  %s %s\n",
			c.stepStyle.Render(update.Step),
			c.dataStyle.Render(fmt.Sprintf("%v", update.Data)),
		)
	}
}

func (c *Console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, format, args...)
}
