package nodes

import (
	"encoding/json"
	"errors"
	"fmt"
	"iter"

	"github.com/smallnest/agentgraph/graph"
	"github.com/smallnest/agentgraph/llm"
	"github.com/smallnest/agentgraph/schema"
)

// ChatConfig configures the chat completion nodes. Model may be left nil and
// registered on the agent instead, under llm.ModelKey.
type ChatConfig struct {
	Model        llm.Model
	SystemPrompt string
	Temperature  float32

	// MaxToolRounds bounds the generate/dispatch loop of
	// ChatCompletionWithTools. Default 5.
	MaxToolRounds int
}

// ChatCompletion drives an LLM over a single user query and streams the
// response: one "stream" output per delta, a "markdownStream" handle carrying
// the same increments, and a final "markdown" with the full text.
type ChatCompletion struct {
	graph.BaseNode
}

// NewChatCompletion creates a chat completion node. Pass a *ChatConfig as the
// node config at AddNode.
func NewChatCompletion() *ChatCompletion { return &ChatCompletion{} }

// Metadata returns the node descriptor.
func (c *ChatCompletion) Metadata() graph.Metadata {
	return graph.Metadata{
		ID:      "@agentgraph/chat-completion",
		Version: "0.1.0",
		Name:    "ChatCompletion",
		Input: schema.Object(schema.Fields{
			"query":       schema.String().Label("Query"),
			"messages":    schema.Array(schema.Any()).Label("History").Optional(),
			"temperature": schema.Number().Label("Temperature").Optional(),
		}),
		Output: schema.Object(schema.Fields{
			"markdown":       schema.String(),
			"stream":         schema.String(),
			"markdownStream": schema.Any(),
		}),
	}
}

// Execute streams the model response.
func (c *ChatCompletion) Execute(tc *graph.Context, input map[string]any) iter.Seq2[graph.Output, error] {
	return func(yield func(graph.Output, error) bool) {
		cfg := chatConfig(tc)
		model, err := resolveModel(tc, cfg)
		if err != nil {
			yield(nil, err)
			return
		}

		req := buildRequest(cfg, input, nil)
		recordRequest(tc, req)

		textStream := graph.NewStream[string]()
		defer textStream.Close()
		if !yield(graph.Output{"markdownStream": textStream}, nil) {
			return
		}

		full := ""
		for delta, err := range model.Generate(tc.Context(), req) {
			if err != nil {
				yield(nil, err)
				return
			}
			if delta.Content == "" {
				continue
			}
			full += delta.Content
			textStream.Push(delta.Content)
			if !yield(graph.Output{"stream": delta.Content}, nil) {
				return
			}
		}

		yield(graph.Output{"markdown": full}, nil)
	}
}

// ChatCompletionWithTools extends ChatCompletion with tool dispatch: tool
// descriptors arrive on the "tools" input, the model's tool calls re-invoke
// the bound tool nodes within the same run, and results feed the next round.
// Failures surface on the "error" output field instead of failing the run.
type ChatCompletionWithTools struct {
	graph.BaseNode
}

// NewChatCompletionWithTools creates a tool-dispatching chat node.
func NewChatCompletionWithTools() *ChatCompletionWithTools { return &ChatCompletionWithTools{} }

// Metadata returns the node descriptor.
func (c *ChatCompletionWithTools) Metadata() graph.Metadata {
	return graph.Metadata{
		ID:      "@agentgraph/chat-completion-with-tools",
		Version: "0.1.0",
		Name:    "ChatCompletionWithTools",
		Input: schema.Object(schema.Fields{
			"query":       schema.String().Label("Query"),
			"messages":    schema.Array(schema.Any()).Label("History").Optional(),
			"tools":       schema.Array(schema.Any()).Label("Tools").Optional(),
			"temperature": schema.Number().Label("Temperature").Optional(),
		}),
		Output: schema.Object(schema.Fields{
			"markdown":       schema.String().Optional(),
			"stream":         schema.String().Optional(),
			"markdownStream": schema.Any().Optional(),
			"error":          schema.String().Optional(),
		}),
	}
}

// Execute runs the generate/dispatch loop.
func (c *ChatCompletionWithTools) Execute(tc *graph.Context, input map[string]any) iter.Seq2[graph.Output, error] {
	return func(yield func(graph.Output, error) bool) {
		cfg := chatConfig(tc)
		model, err := resolveModel(tc, cfg)
		if err != nil {
			yield(graph.Output{"error": err.Error()}, nil)
			return
		}

		descriptors := toolDescriptors(input["tools"])
		tools := make([]llm.Tool, 0, len(descriptors))
		for _, desc := range descriptors {
			tools = append(tools, llm.Tool{
				Name:        desc.ID,
				Description: desc.Description,
				Parameters:  desc.Parameters,
			})
		}

		maxRounds := cfg.MaxToolRounds
		if maxRounds <= 0 {
			maxRounds = 5
		}

		req := buildRequest(cfg, input, tools)
		recordRequest(tc, req)

		textStream := graph.NewStream[string]()
		defer textStream.Close()
		if !yield(graph.Output{"markdownStream": textStream}, nil) {
			return
		}

		full := ""
		for round := 0; round < maxRounds; round++ {
			var calls []llm.ToolCall
			for delta, err := range model.Generate(tc.Context(), req) {
				if err != nil {
					yield(graph.Output{"error": err.Error()}, nil)
					return
				}
				if delta.Content != "" {
					full += delta.Content
					textStream.Push(delta.Content)
					if !yield(graph.Output{"stream": delta.Content}, nil) {
						return
					}
				}
				calls = append(calls, delta.ToolCalls...)
			}

			if len(calls) == 0 {
				yield(graph.Output{"markdown": full}, nil)
				return
			}

			results, err := c.dispatch(tc, descriptors, calls)
			if err != nil {
				yield(graph.Output{"error": err.Error()}, nil)
				return
			}
			req.Messages = append(req.Messages, llm.Message{Role: llm.RoleAssistant, ToolCalls: calls})
			req.Messages = append(req.Messages, results...)
		}

		yield(graph.Output{"error": fmt.Sprintf("tool dispatch did not converge after %d rounds", maxRounds)}, nil)
	}
}

// dispatch re-invokes each called tool node within the current run and
// returns the tool messages for the next model round.
func (c *ChatCompletionWithTools) dispatch(tc *graph.Context, descriptors []graph.ToolDescriptor, calls []llm.ToolCall) ([]llm.Message, error) {
	byID := make(map[string]graph.ToolDescriptor, len(descriptors))
	for _, d := range descriptors {
		byID[d.ID] = d
	}

	var messages []llm.Message
	for _, call := range calls {
		desc, ok := byID[call.Name]
		if !ok {
			return nil, fmt.Errorf("model called unknown tool %q", call.Name)
		}

		args := map[string]any{}
		if call.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
				return nil, fmt.Errorf("invalid arguments for tool %q: %w", call.Name, err)
			}
		}

		inv := desc.Node.Invoke(tc.Context(), args, graph.WithRun(tc.Run()))
		output, err := inv.Result(tc.Context())
		if err != nil && !errors.Is(err, graph.ErrRunSkipped) {
			return nil, fmt.Errorf("tool %q failed: %w", call.Name, err)
		}

		content, err := json.Marshal(output)
		if err != nil {
			return nil, fmt.Errorf("tool %q returned unencodable output: %w", call.Name, err)
		}
		messages = append(messages, llm.Message{
			Role:       llm.RoleTool,
			ToolCallID: call.ID,
			Name:       call.Name,
			Content:    string(content),
		})
	}
	return messages, nil
}

func chatConfig(tc *graph.Context) *ChatConfig {
	if cfg, ok := tc.Config().(*ChatConfig); ok && cfg != nil {
		return cfg
	}
	return &ChatConfig{}
}

// resolveModel picks the configured model, falling back to the agent-level
// registration. Custom-request models must come with a custom executor.
func resolveModel(tc *graph.Context, cfg *ChatConfig) (llm.Model, error) {
	model := cfg.Model
	if model == nil {
		if v, ok := tc.Resolve(llm.ModelKey); ok {
			model, _ = v.(llm.Model)
		}
	}
	if model == nil {
		return nil, errors.New("nodes: no llm model configured")
	}

	if model.Metadata().Custom {
		v, ok := tc.Resolve(llm.CustomExecutorKey)
		if !ok {
			return nil, llm.ErrCustomExecutorMissing
		}
		executor, ok := v.(llm.Model)
		if !ok {
			return nil, llm.ErrCustomExecutorMissing
		}
		return executor, nil
	}
	return model, nil
}

func buildRequest(cfg *ChatConfig, input map[string]any, tools []llm.Tool) *llm.Request {
	var messages []llm.Message
	if cfg.SystemPrompt != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: cfg.SystemPrompt})
	}
	messages = append(messages, historyMessages(input["messages"])...)
	if query, ok := input["query"].(string); ok && query != "" {
		messages = append(messages, llm.Message{Role: llm.RoleUser, Content: query})
	}

	temperature := cfg.Temperature
	switch v := input["temperature"].(type) {
	case float64:
		temperature = float32(v)
	case float32:
		temperature = v
	case int:
		temperature = float32(v)
	}

	return &llm.Request{
		Messages:    messages,
		Tools:       tools,
		Temperature: temperature,
		Stream:      true,
	}
}

func recordRequest(tc *graph.Context, req *llm.Request) {
	tc.SetGlobalState(llm.RequestBodyKey, req)
	tc.SetGlobalState(llm.ResponseStreamKey, req.Stream)
}

// historyMessages folds prior conversation turns from the "messages" input
// into request messages. Turns arrive either as llm.Message values or as
// {role, content} maps (the wire form a session store replays).
func historyMessages(v any) []llm.Message {
	switch history := v.(type) {
	case []llm.Message:
		return history
	case []any:
		out := make([]llm.Message, 0, len(history))
		for _, item := range history {
			switch m := item.(type) {
			case llm.Message:
				out = append(out, m)
			case map[string]any:
				role, _ := m["role"].(string)
				content, _ := m["content"].(string)
				if role != "" {
					out = append(out, llm.Message{Role: role, Content: content})
				}
			}
		}
		return out
	}
	return nil
}

// toolDescriptors extracts tool descriptors from the bound "tools" input.
func toolDescriptors(v any) []graph.ToolDescriptor {
	items, ok := v.([]any)
	if !ok {
		if single, ok := v.(graph.ToolDescriptor); ok {
			return []graph.ToolDescriptor{single}
		}
		return nil
	}
	out := make([]graph.ToolDescriptor, 0, len(items))
	for _, item := range items {
		if desc, ok := item.(graph.ToolDescriptor); ok {
			out = append(out, desc)
		}
	}
	return out
}
