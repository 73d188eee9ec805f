package llm

import (
	"context"
	"errors"
	"io"
	"iter"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIModel drives any OpenAI-compatible chat completion endpoint. The
// endpoint URL and extra headers come from the model metadata's RequestSpec.
type OpenAIModel struct {
	client *openai.Client
	model  string
	meta   Metadata
}

// OpenAIOption configures an OpenAIModel.
type OpenAIOption func(*openaiConfig)

type openaiConfig struct {
	apiKey     string
	httpClient *http.Client
}

// WithAPIKey sets the bearer token sent to the endpoint.
func WithAPIKey(key string) OpenAIOption {
	return func(c *openaiConfig) { c.apiKey = key }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(client *http.Client) OpenAIOption {
	return func(c *openaiConfig) { c.httpClient = client }
}

// headerTransport injects the metadata's extra headers into every request.
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}

// NewOpenAIModel creates a model for an OpenAI-compatible endpoint. meta must
// carry a RequestSpec; model is the provider model id placed in the request
// body.
func NewOpenAIModel(meta Metadata, model string, opts ...OpenAIOption) (*OpenAIModel, error) {
	if meta.Custom {
		return nil, ErrCustomExecutorMissing
	}
	if meta.Request == nil || meta.Request.URL == "" {
		return nil, errors.New("llm: metadata carries no request URL")
	}

	var cfg openaiConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	clientCfg := openai.DefaultConfig(cfg.apiKey)
	clientCfg.BaseURL = meta.Request.URL
	httpClient := cfg.httpClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if len(meta.Request.Headers) > 0 {
		httpClient = &http.Client{
			Transport: &headerTransport{base: httpClient.Transport, headers: meta.Request.Headers},
			Timeout:   httpClient.Timeout,
		}
	}
	clientCfg.HTTPClient = httpClient

	return &OpenAIModel{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
		meta:   meta,
	}, nil
}

// Metadata returns the model descriptor.
func (m *OpenAIModel) Metadata() Metadata { return m.meta }

// Generate produces response deltas. With req.Stream set, each upstream
// chunk's delta is yielded as it arrives; otherwise a single delta carries
// the full message.
func (m *OpenAIModel) Generate(ctx context.Context, req *Request) iter.Seq2[*Delta, error] {
	oaiReq := m.buildRequest(req)

	if req.Stream {
		return func(yield func(*Delta, error) bool) {
			stream, err := m.client.CreateChatCompletionStream(ctx, oaiReq)
			if err != nil {
				yield(nil, wrapOpenAIError(err))
				return
			}
			defer stream.Close()

			for {
				resp, err := stream.Recv()
				if errors.Is(err, io.EOF) {
					return
				}
				if err != nil {
					yield(nil, wrapOpenAIError(err))
					return
				}
				if len(resp.Choices) == 0 {
					continue
				}
				choice := resp.Choices[0]
				delta := &Delta{
					Content:      choice.Delta.Content,
					ToolCalls:    fromOpenAIStreamToolCalls(choice.Delta.ToolCalls),
					FinishReason: string(choice.FinishReason),
				}
				if !yield(delta, nil) {
					return
				}
			}
		}
	}

	return func(yield func(*Delta, error) bool) {
		resp, err := m.client.CreateChatCompletion(ctx, oaiReq)
		if err != nil {
			yield(nil, wrapOpenAIError(err))
			return
		}
		if len(resp.Choices) == 0 {
			yield(&Delta{}, nil)
			return
		}
		choice := resp.Choices[0]
		yield(&Delta{
			Content:      choice.Message.Content,
			ToolCalls:    fromOpenAIToolCalls(choice.Message.ToolCalls),
			FinishReason: string(choice.FinishReason),
		}, nil)
	}
}

func (m *OpenAIModel) buildRequest(req *Request) openai.ChatCompletionRequest {
	oaiReq := openai.ChatCompletionRequest{
		Model:       m.model,
		Temperature: req.Temperature,
		Stream:      req.Stream,
	}
	for _, msg := range req.Messages {
		oaiMsg := openai.ChatCompletionMessage{
			Role:       msg.Role,
			Content:    msg.Content,
			Name:       msg.Name,
			ToolCallID: msg.ToolCallID,
		}
		for _, tc := range msg.ToolCalls {
			oaiMsg.ToolCalls = append(oaiMsg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		oaiReq.Messages = append(oaiReq.Messages, oaiMsg)
	}
	for _, tool := range req.Tools {
		oaiReq.Tools = append(oaiReq.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}
	return oaiReq
}

func fromOpenAIToolCalls(calls []openai.ToolCall) []ToolCall {
	out := make([]ToolCall, 0, len(calls))
	for _, c := range calls {
		out = append(out, ToolCall{ID: c.ID, Name: c.Function.Name, Arguments: c.Function.Arguments})
	}
	return out
}

func fromOpenAIStreamToolCalls(calls []openai.ToolCall) []ToolCall {
	if len(calls) == 0 {
		return nil
	}
	return fromOpenAIToolCalls(calls)
}

func wrapOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &TransportError{Status: apiErr.HTTPStatusCode, Body: apiErr.Message, Err: err}
	}
	return &TransportError{Err: err}
}
