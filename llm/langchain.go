package llm

import (
	"context"
	"encoding/json"
	"iter"

	"github.com/tmc/langchaingo/llms"
)

// LangchainModel adapts a langchaingo model to the Model interface, so any
// provider langchaingo supports can back a chat completion node.
type LangchainModel struct {
	model llms.Model
	meta  Metadata
}

// NewLangchainModel wraps a langchaingo model.
func NewLangchainModel(model llms.Model, meta Metadata) *LangchainModel {
	return &LangchainModel{model: model, meta: meta}
}

// Metadata returns the model descriptor.
func (m *LangchainModel) Metadata() Metadata { return m.meta }

// Generate produces response deltas. Streaming uses langchaingo's streaming
// callback; chunks are forwarded as deltas while the call runs, followed by
// a final delta carrying any tool calls.
func (m *LangchainModel) Generate(ctx context.Context, req *Request) iter.Seq2[*Delta, error] {
	messages := toLangchainMessages(req.Messages)

	opts := []llms.CallOption{}
	if req.Temperature != 0 {
		opts = append(opts, llms.WithTemperature(float64(req.Temperature)))
	}
	if len(req.Tools) > 0 {
		tools := make([]llms.Tool, 0, len(req.Tools))
		for _, t := range req.Tools {
			tools = append(tools, llms.Tool{
				Type: "function",
				Function: &llms.FunctionDefinition{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  t.Parameters,
				},
			})
		}
		opts = append(opts, llms.WithTools(tools))
	}

	if !req.Stream {
		return func(yield func(*Delta, error) bool) {
			resp, err := m.model.GenerateContent(ctx, messages, opts...)
			if err != nil {
				yield(nil, &TransportError{Err: err})
				return
			}
			yield(fromLangchainResponse(resp), nil)
		}
	}

	return func(yield func(*Delta, error) bool) {
		type chunkOrDone struct {
			chunk string
			resp  *llms.ContentResponse
			err   error
		}
		ch := make(chan chunkOrDone, 16)

		streamOpts := append(opts, llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			ch <- chunkOrDone{chunk: string(chunk)}
			return nil
		}))

		go func() {
			resp, err := m.model.GenerateContent(ctx, messages, streamOpts...)
			ch <- chunkOrDone{resp: resp, err: err}
		}()

		for item := range ch {
			switch {
			case item.err != nil:
				yield(nil, &TransportError{Err: item.err})
				return
			case item.resp != nil:
				// Final response: surface tool calls and the finish reason.
				final := fromLangchainResponse(item.resp)
				final.Content = ""
				yield(final, nil)
				return
			default:
				if !yield(&Delta{Content: item.chunk}, nil) {
					return
				}
			}
		}
	}
}

func toLangchainMessages(messages []Message) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(messages))
	for _, msg := range messages {
		role := llms.ChatMessageTypeHuman
		switch msg.Role {
		case RoleSystem:
			role = llms.ChatMessageTypeSystem
		case RoleAssistant:
			role = llms.ChatMessageTypeAI
		case RoleTool:
			role = llms.ChatMessageTypeTool
		}

		if msg.Role == RoleTool {
			out = append(out, llms.MessageContent{
				Role: role,
				Parts: []llms.ContentPart{llms.ToolCallResponse{
					ToolCallID: msg.ToolCallID,
					Name:       msg.Name,
					Content:    msg.Content,
				}},
			})
			continue
		}

		mc := llms.TextParts(role, msg.Content)
		for _, tc := range msg.ToolCalls {
			mc.Parts = append(mc.Parts, llms.ToolCall{
				ID:   tc.ID,
				Type: "function",
				FunctionCall: &llms.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		out = append(out, mc)
	}
	return out
}

func fromLangchainResponse(resp *llms.ContentResponse) *Delta {
	if resp == nil || len(resp.Choices) == 0 {
		return &Delta{}
	}
	choice := resp.Choices[0]
	delta := &Delta{
		Content:      choice.Content,
		FinishReason: choice.StopReason,
	}
	for _, tc := range choice.ToolCalls {
		call := ToolCall{ID: tc.ID}
		if tc.FunctionCall != nil {
			call.Name = tc.FunctionCall.Name
			call.Arguments = tc.FunctionCall.Arguments
		}
		delta.ToolCalls = append(delta.ToolCalls, call)
	}
	return delta
}

// MarshalToolArguments encodes tool arguments for a synthetic tool call.
func MarshalToolArguments(args map[string]any) string {
	data, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(data)
}
