// AgentGraph - A dataflow runtime for composing LLM agent nodes in Go
//
// AgentGraph wires independently authored agent nodes into a directed graph
// and drives runs through it: values published by one node become inputs to
// another, skips propagate so nothing hangs, and render updates stream to a
// UI on their own channel.
//
// # Quick Start
//
// Install the package:
//
//	go get github.com/smallnest/agentgraph
//
// Basic example:
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//
//		"github.com/smallnest/agentgraph/graph"
//		"github.com/smallnest/agentgraph/llm"
//		"github.com/smallnest/agentgraph/nodes"
//	)
//
//	func main() {
//		model, _ := llm.NewOpenAIModel(llm.Metadata{
//			ID:      "gpt",
//			Name:    "GPT",
//			Request: &llm.RequestSpec{URL: "https://api.openai.com/v1"},
//		}, "gpt-4o-mini", llm.WithAPIKey("sk-..."))
//
//		agent := graph.New()
//		search, _ := nodes.NewBraveSearch("")
//		tool, _ := agent.AddNode("search", search)
//		chat, _ := agent.AddNode("chat", nodes.NewChatCompletionWithTools(),
//			&nodes.ChatConfig{Model: model})
//		chat.Bind(graph.Bindings{"tools": []*graph.Provider{tool.Schema()}})
//		user, _ := agent.AddNode("user", nodes.NewUser())
//		user.Bind(graph.Bindings{
//			"markdown": chat.Output("markdown"),
//			"ui":       tool.Render(),
//		})
//
//		inv := chat.Invoke(context.Background(), map[string]any{
//			"query": "What's new in Go?",
//		})
//		out, err := inv.Result(context.Background())
//		if err != nil {
//			panic(err)
//		}
//		fmt.Println(out["markdown"])
//	}
//
// # Packages
//
//   - graph: the core runtime — event stream, graph nodes, bindings, value
//     providers, run lifecycle
//   - schema: field schema builders for node inputs, outputs, and tool
//     parameters
//   - llm: the model contract plus OpenAI-compatible and langchaingo
//     executors
//   - nodes: prebuilt nodes — User sink, chat completion (with tool
//     dispatch), passthrough, web search, page extraction
//   - session: conversation persistence (memory, Redis, SQLite, PostgreSQL)
//   - render: console consumer for render streams
//   - log: leveled logging with stdlib and golog backends
package agentgraph
