package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ashureev/newsdesk/internal/domain"
)

const tavilySearchURL = "https://api.tavily.com/search"

// Tavily calls the Tavily search API.
type Tavily struct {
	apiKey   string
	client   *http.Client
	endpoint string
}

// NewTavily constructs a Tavily provider.
func NewTavily(apiKey string, client *http.Client) *Tavily {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &Tavily{apiKey: apiKey, client: client, endpoint: tavilySearchURL}
}

// Name implements Provider.
func (t *Tavily) Name() string { return "tavily" }

// Search posts a query to Tavily.
func (t *Tavily) Search(ctx context.Context, query string, maxResults int) ([]domain.SearchResult, error) {
	body := map[string]any{
		"query":        query,
		"search_depth": "basic",
		"topic":        "news",
	}
	if maxResults > 0 {
		body["max_results"] = maxResults
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode tavily request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tavily http %d", resp.StatusCode)
	}

	var response struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode tavily response: %w", err)
	}

	results := make([]domain.SearchResult, 0, len(response.Results))
	for _, r := range response.Results {
		if maxResults > 0 && len(results) >= maxResults {
			break
		}
		results = append(results, domain.SearchResult{Title: r.Title, URL: r.URL, Description: r.Content})
	}
	return results, nil
}
