package search

import "context"

// Tool exposes an Adapter as a model-invocable capability.
type Tool struct {
	adapter *Adapter
}

// NewTool wraps adapter as a tool.
func NewTool(adapter *Adapter) *Tool {
	return &Tool{adapter: adapter}
}

// Name returns the function name advertised to the model.
func (t *Tool) Name() string { return "get_news_articles" }

// Description tells the model when to call the tool.
func (t *Tool) Description() string {
	return "Search the web for the latest news articles about a topic. " +
		"Pass the exact keywords to search for. Returns titles, URLs and descriptions."
}

// Invoke runs a search for input.
func (t *Tool) Invoke(ctx context.Context, input string) (string, error) {
	return t.adapter.FetchSummaries(ctx, input)
}
