// Package nodes provides prebuilt agent nodes for common graph roles: the
// User sink, chat completion nodes over an llm.Model (with and without tool
// dispatch), a passthrough, and tool nodes for web search and page
// extraction.
package nodes
