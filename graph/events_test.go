package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventStreamDeliversInOrder(t *testing.T) {
	s := NewEventStream()

	var seen []EventType
	s.Subscribe(func(e AgentEvent) {
		seen = append(seen, e.Type)
	})

	run := &RunRef{ID: "r1"}
	s.Next(AgentEvent{Type: EventRunInvoked, Run: run})
	s.Next(AgentEvent{Type: EventOutput, Run: run})
	s.Next(AgentEvent{Type: EventRunCompleted, Run: run})

	assert.Equal(t, []EventType{EventRunInvoked, EventOutput, EventRunCompleted}, seen)
}

func TestEventStreamLateSubscriberMissesHistory(t *testing.T) {
	s := NewEventStream()
	run := &RunRef{ID: "r1"}
	s.Next(AgentEvent{Type: EventRunInvoked, Run: run})

	var count int
	s.Subscribe(func(e AgentEvent) { count++ })

	s.Next(AgentEvent{Type: EventRunCompleted, Run: run})
	assert.Equal(t, 1, count)
}

func TestEventStreamReentrantNext(t *testing.T) {
	s := NewEventStream()
	run := &RunRef{ID: "r1"}

	var seen []EventType
	s.Subscribe(func(e AgentEvent) {
		seen = append(seen, e.Type)
		if e.Type == EventRunInvoked {
			// Publishing from inside a handler must not deadlock, and the
			// event must be queued behind the current dispatch.
			s.Next(AgentEvent{Type: EventOutput, Run: run})
		}
	})

	s.Next(AgentEvent{Type: EventRunInvoked, Run: run})
	assert.Equal(t, []EventType{EventRunInvoked, EventOutput}, seen)
}

func TestEventStreamUnsubscribe(t *testing.T) {
	s := NewEventStream()
	var count int
	unsubscribe := s.Subscribe(func(e AgentEvent) { count++ })

	s.Next(AgentEvent{Type: EventRunInvoked, Run: &RunRef{ID: "r1"}})
	unsubscribe()
	s.Next(AgentEvent{Type: EventRunCompleted, Run: &RunRef{ID: "r1"}})

	assert.Equal(t, 1, count)
}

func TestSendOutputAndRender(t *testing.T) {
	s := NewEventStream()
	var events []AgentEvent
	s.Subscribe(func(e AgentEvent) { events = append(events, e) })

	run := &RunRef{ID: "r1"}
	node := NodeRef{ID: "n1", Type: "test", Version: "1"}
	s.SendOutput(run, node, map[string]any{"x": 1})
	s.SendRenderUpdate(run, node, RenderUpdate{Step: "render-0", Data: "hello"})

	assert.Len(t, events, 2)
	assert.Equal(t, EventOutput, events[0].Type)
	assert.Equal(t, 1, events[0].Output["x"])
	assert.Equal(t, EventRender, events[1].Type)
	assert.Equal(t, "render-0", events[1].Render.Step)
	assert.True(t, AgentEvent{Type: EventRunSkipped}.Terminal())
	assert.False(t, AgentEvent{Type: EventOutput}.Terminal())
}
