package graph

import "sync"

// EventType identifies the kind of an AgentEvent. The set is closed.
type EventType string

const (
	// EventRunInvoked seeds a run in the stream. Every bound graph node uses
	// it as the trigger to start collecting inputs for that run.
	EventRunInvoked EventType = "run/invoked"

	// EventOutput carries a partial output map published by a node.
	EventOutput EventType = "node/output"

	// EventRender carries a {step, data} render update for a node.
	EventRender EventType = "node/render"

	// EventRunCompleted signals a node has finished its generator for a run.
	EventRunCompleted EventType = "run/completed"

	// EventRunSkipped signals a node will not run for this run.
	EventRunSkipped EventType = "run/skipped"
)

// RunRef identifies one logical traversal of the graph.
type RunRef struct {
	ID string `json:"id"`
}

// NodeRef identifies a node instance on the wire.
type NodeRef struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Version string `json:"version"`
}

// RenderUpdate is the payload of a render event. Step is an opaque render id;
// the runtime never interprets it.
type RenderUpdate struct {
	Step string `json:"step"`
	Data any    `json:"data"`
}

// AgentEvent is one message on the event stream. Run is nil only for
// run-independent global values.
type AgentEvent struct {
	Type   EventType
	Run    *RunRef
	Node   NodeRef
	Output map[string]any
	Render *RenderUpdate
}

// Terminal reports whether the event ends a (run, node) pair.
func (e AgentEvent) Terminal() bool {
	return e.Type == EventRunCompleted || e.Type == EventRunSkipped
}

// EventStream is the hot multicast bus for one graph instance. Next publishes
// to all current subscribers; late subscribers do not receive historical
// events. Dispatch is serialized through a single-writer queue: handlers run
// without the stream lock held, and re-entrant Next calls from inside a
// handler append to the queue and are delivered in order.
type EventStream struct {
	mu       sync.Mutex
	nextID   int
	subs     map[int]func(AgentEvent)
	queue    []AgentEvent
	draining bool
}

// NewEventStream creates an empty event stream.
func NewEventStream() *EventStream {
	return &EventStream{subs: make(map[int]func(AgentEvent))}
}

// Subscribe registers a handler for every subsequent event. The returned
// function removes the subscription.
func (s *EventStream) Subscribe(handler func(AgentEvent)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = handler
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Next publishes an event to all current subscribers. If a dispatch is
// already in progress (on this or another goroutine) the event is queued
// behind it, preserving publication order from each producer.
func (s *EventStream) Next(e AgentEvent) {
	s.mu.Lock()
	s.queue = append(s.queue, e)
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true

	for len(s.queue) > 0 {
		ev := s.queue[0]
		s.queue = s.queue[1:]

		handlers := make([]func(AgentEvent), 0, len(s.subs))
		for _, h := range s.subs {
			handlers = append(handlers, h)
		}
		s.mu.Unlock()

		for _, h := range handlers {
			h(ev)
		}

		s.mu.Lock()
	}

	s.draining = false
	s.mu.Unlock()
}

// SendOutput publishes an Output event for the given node and run.
func (s *EventStream) SendOutput(run *RunRef, node NodeRef, output map[string]any) {
	s.Next(AgentEvent{Type: EventOutput, Run: run, Node: node, Output: output})
}

// SendRenderUpdate publishes a Render event for the given node and run.
func (s *EventStream) SendRenderUpdate(run *RunRef, node NodeRef, update RenderUpdate) {
	s.Next(AgentEvent{Type: EventRender, Run: run, Node: node, Render: &update})
}
