// Package llm defines the model contract used by chat completion nodes and
// the executors that drive real language models behind it.
//
// A Model exposes stable Metadata describing how requests reach it, and a
// Generate method streaming response deltas. Two executors are provided: an
// OpenAI-compatible HTTP transport and an adapter over langchaingo models.
package llm

import (
	"context"
	"fmt"
	"iter"
)

// Well-known context keys used by executors to record request/response state
// and by nodes to resolve the configured model.
const (
	// MetadataKey resolves the active model's metadata.
	MetadataKey = "core.llm.model.metadata"

	// ModelKey resolves the active Model instance.
	ModelKey = "core.llm.model"

	// CustomExecutorKey resolves the executor for models whose metadata
	// requests custom handling.
	CustomExecutorKey = "core.llm.executor.custom"

	// RequestBodyKey records the composed request body.
	RequestBodyKey = "core.llm.request.body"

	// ResponseStatusKey records the upstream HTTP status.
	ResponseStatusKey = "core.llm.response.status"

	// ResponseStreamKey records whether the response was streamed.
	ResponseStreamKey = "core.llm.response.stream"
)

// RequestSpec describes how to reach a model endpoint.
type RequestSpec struct {
	URL     string
	Headers map[string]string

	// Body carries provider-specific request fields. Neither OpenAIModel nor
	// LangchainModel adds them to the requests it sends.
	Body map[string]any
}

// Metadata is the stable descriptor of a model. A model with Custom set must
// be driven by a custom executor resolved from the node context; using one
// without is a protocol violation.
type Metadata struct {
	ID      string
	Name    string
	Request *RequestSpec
	Custom  bool
}

// Message is one chat message on the wire.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	Name       string     `json:"name,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolCall is a model's request to invoke a tool.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Tool describes a callable tool offered to the model.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request is a chat completion request.
type Request struct {
	Messages    []Message
	Tools       []Tool
	Temperature float32
	Stream      bool
}

// Delta is one increment of a model response. Non-streaming executors yield
// a single delta carrying the whole message.
type Delta struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason string
}

// Model generates chat completions.
type Model interface {
	// Metadata returns the model's stable descriptor.
	Metadata() Metadata

	// Generate produces response deltas for a request. The sequence ends
	// when the upstream response is complete; transport failures surface as
	// the sequence error.
	Generate(ctx context.Context, req *Request) iter.Seq2[*Delta, error]
}

// TransportError wraps an upstream transport failure, carrying the upstream
// message so callers can surface it.
type TransportError struct {
	Status int
	Body   string
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("llm transport failed with status %d: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("llm transport failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ErrCustomExecutorMissing reports a custom-request model used without a
// custom executor registered under CustomExecutorKey.
var ErrCustomExecutorMissing = fmt.Errorf("model requests custom handling but no custom executor is registered")
