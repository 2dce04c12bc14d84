package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ashureev/newsdesk/internal/domain"
)

const braveSearchURL = "https://api.search.brave.com/res/v1/web/search"

// Brave uses the Brave Search API.
type Brave struct {
	apiKey   string
	client   *http.Client
	endpoint string
}

// NewBrave constructs a Brave provider.
func NewBrave(apiKey string, client *http.Client) *Brave {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &Brave{apiKey: apiKey, client: client, endpoint: braveSearchURL}
}

// Name implements Provider.
func (b *Brave) Name() string { return "brave" }

// Search executes a single Brave web search.
func (b *Brave) Search(ctx context.Context, query string, maxResults int) ([]domain.SearchResult, error) {
	params := url.Values{}
	params.Set("q", query)
	if maxResults > 0 {
		params.Set("count", strconv.Itoa(maxResults))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", b.apiKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("brave http %d", resp.StatusCode)
	}

	var payload struct {
		Web struct {
			Results []struct {
				Title       string `json:"title"`
				URL         string `json:"url"`
				Description string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode brave response: %w", err)
	}

	results := make([]domain.SearchResult, 0, len(payload.Web.Results))
	for _, r := range payload.Web.Results {
		if maxResults > 0 && len(results) >= maxResults {
			break
		}
		results = append(results, domain.SearchResult{
			Title:       cleanHTML(r.Title),
			URL:         r.URL,
			Description: cleanHTML(r.Description),
		})
	}
	return results, nil
}
