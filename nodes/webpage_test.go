package nodes

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/agentgraph/graph"
)

func TestWebpageExtractsTitleAndText(t *testing.T) {
	page := `<!DOCTYPE html>
<html>
<head><title>Test Page</title><script>var x = 1;</script></head>
<body>
  <h1>Welcome</h1>
  <p>First paragraph.</p>
  <ul><li>Item one</li></ul>
  <style>.hidden{}</style>
</body>
</html>`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page)
	}))
	defer server.Close()

	agent := graph.New()
	node, err := agent.AddNode("page", NewWebpage())
	require.NoError(t, err)

	out, err := node.Invoke(context.Background(), map[string]any{"url": server.URL}).Result(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Test Page", out["title"])
	text, _ := out["text"].(string)
	assert.Contains(t, text, "Welcome")
	assert.Contains(t, text, "First paragraph.")
	assert.Contains(t, text, "Item one")
	assert.NotContains(t, text, "var x")
}

func TestWebpageErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	agent := graph.New()
	node, err := agent.AddNode("page", NewWebpage())
	require.NoError(t, err)

	_, err = node.Invoke(context.Background(), map[string]any{"url": server.URL}).Result(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")

	_, err = node.Invoke(context.Background(), map[string]any{}).Result(context.Background())
	require.Error(t, err)
}
