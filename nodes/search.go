package nodes

import (
	"encoding/json"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"os"

	"github.com/smallnest/agentgraph/graph"
	"github.com/smallnest/agentgraph/schema"
)

// BraveSearch is a tool node backed by the Brave Search API. Offer it to an
// LLM node through its Schema provider; the dispatch path invokes it with a
// {query} input and it publishes structured results.
type BraveSearch struct {
	graph.BaseNode

	apiKey  string
	baseURL string
	count   int
	country string
	lang    string
	client  *http.Client
}

// SearchResult is one web result returned by the search tool.
type SearchResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// BraveOption configures a BraveSearch node.
type BraveOption func(*BraveSearch)

// WithBraveBaseURL sets the base URL for the Brave Search API.
func WithBraveBaseURL(baseURL string) BraveOption {
	return func(b *BraveSearch) { b.baseURL = baseURL }
}

// WithBraveCount sets the number of results to return (1-20).
func WithBraveCount(count int) BraveOption {
	return func(b *BraveSearch) {
		if count < 1 {
			count = 1
		}
		if count > 20 {
			count = 20
		}
		b.count = count
	}
}

// WithBraveCountry sets the country code for search results (e.g., "US").
func WithBraveCountry(country string) BraveOption {
	return func(b *BraveSearch) { b.country = country }
}

// WithBraveLang sets the language code for search results (e.g., "en").
func WithBraveLang(lang string) BraveOption {
	return func(b *BraveSearch) { b.lang = lang }
}

// WithBraveHTTPClient replaces the HTTP client.
func WithBraveHTTPClient(client *http.Client) BraveOption {
	return func(b *BraveSearch) { b.client = client }
}

// NewBraveSearch creates a Brave search tool node. If apiKey is empty, it is
// read from the BRAVE_API_KEY environment variable.
func NewBraveSearch(apiKey string, opts ...BraveOption) (*BraveSearch, error) {
	if apiKey == "" {
		apiKey = os.Getenv("BRAVE_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("BRAVE_API_KEY not set")
	}

	b := &BraveSearch{
		apiKey:  apiKey,
		baseURL: "https://api.search.brave.com/res/v1/web/search",
		count:   10,
		country: "US",
		lang:    "en",
		client:  &http.Client{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Metadata returns the node descriptor.
func (b *BraveSearch) Metadata() graph.Metadata {
	return graph.Metadata{
		ID:      "@agentgraph/brave-search",
		Version: "0.1.0",
		Name:    "Brave_Search",
		Description: "A privacy-focused search engine powered by Brave. " +
			"Useful for finding current information and answering questions.",
		Input: schema.Object(schema.Fields{
			"query": schema.String().Label("Search query"),
		}),
		Output: schema.Object(schema.Fields{
			"results": schema.Array(schema.Any()).Label("Results"),
		}),
	}
}

// Execute runs the search and publishes the results.
func (b *BraveSearch) Execute(tc *graph.Context, input map[string]any) iter.Seq2[graph.Output, error] {
	return func(yield func(graph.Output, error) bool) {
		query, _ := input["query"].(string)
		if query == "" {
			yield(nil, fmt.Errorf("search query is empty"))
			return
		}

		results, err := b.search(tc, query)
		if err != nil {
			yield(nil, err)
			return
		}
		yield(graph.Output{"results": results}, nil)
	}
}

func (b *BraveSearch) search(tc *graph.Context, query string) ([]SearchResult, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("count", fmt.Sprintf("%d", b.count))
	if b.country != "" {
		params.Set("country", b.country)
	}
	if b.lang != "" {
		params.Set("search_lang", b.lang)
	}

	reqURL := fmt.Sprintf("%s?%s", b.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(tc.Context(), http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", b.apiKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("brave api returned status: %d", resp.StatusCode)
	}

	var payload struct {
		Web struct {
			Results []SearchResult `json:"results"`
		} `json:"web"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return payload.Web.Results, nil
}
