package nodes

import (
	"fmt"
	"iter"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/smallnest/agentgraph/graph"
	"github.com/smallnest/agentgraph/schema"
)

// Webpage is a tool node that fetches a URL and extracts its title and
// readable text.
type Webpage struct {
	graph.BaseNode

	client *http.Client
}

// WebpageOption configures a Webpage node.
type WebpageOption func(*Webpage)

// WithWebpageHTTPClient replaces the HTTP client.
func WithWebpageHTTPClient(client *http.Client) WebpageOption {
	return func(w *Webpage) { w.client = client }
}

// NewWebpage creates a webpage extraction tool node.
func NewWebpage(opts ...WebpageOption) *Webpage {
	w := &Webpage{client: &http.Client{}}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Metadata returns the node descriptor.
func (w *Webpage) Metadata() graph.Metadata {
	return graph.Metadata{
		ID:          "@agentgraph/webpage",
		Version:     "0.1.0",
		Name:        "Webpage",
		Description: "Fetches a web page and extracts its title and readable text.",
		Input: schema.Object(schema.Fields{
			"url": schema.String().Label("URL"),
		}),
		Output: schema.Object(schema.Fields{
			"title": schema.String(),
			"text":  schema.String(),
		}),
	}
}

// Execute fetches the page and publishes title and text.
func (w *Webpage) Execute(tc *graph.Context, input map[string]any) iter.Seq2[graph.Output, error] {
	return func(yield func(graph.Output, error) bool) {
		pageURL, _ := input["url"].(string)
		if pageURL == "" {
			yield(nil, fmt.Errorf("url is empty"))
			return
		}

		req, err := http.NewRequestWithContext(tc.Context(), http.MethodGet, pageURL, nil)
		if err != nil {
			yield(nil, fmt.Errorf("failed to create request: %w", err))
			return
		}

		resp, err := w.client.Do(req)
		if err != nil {
			yield(nil, fmt.Errorf("failed to fetch page: %w", err))
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			yield(nil, fmt.Errorf("page returned status: %d", resp.StatusCode))
			return
		}

		doc, err := goquery.NewDocumentFromReader(resp.Body)
		if err != nil {
			yield(nil, fmt.Errorf("failed to parse page: %w", err))
			return
		}

		doc.Find("script, style, noscript").Remove()

		title := strings.TrimSpace(doc.Find("title").First().Text())

		var sb strings.Builder
		doc.Find("h1, h2, h3, h4, p, li, pre").Each(func(_ int, s *goquery.Selection) {
			text := strings.TrimSpace(s.Text())
			if text != "" {
				sb.WriteString(text)
				sb.WriteString("\n")
			}
		})

		yield(graph.Output{"title": title, "text": strings.TrimSpace(sb.String())}, nil)
	}
}
