package search

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/ashureev/newsdesk/internal/domain"
)

const duckDuckGoLiteURL = "https://lite.duckduckgo.com/lite/"

var (
	// <a rel="nofollow" href="URL" class='result-link'>TITLE</a>
	ddgLinkPattern = regexp.MustCompile(`<a[^>]*class=['"]result-link['"][^>]*href=['"]([^'"]+)['"][^>]*>([^<]+)</a>`)
	// Same link with href before class.
	ddgLinkPatternAlt = regexp.MustCompile(`<a[^>]*href=['"]([^'"]+)['"][^>]*class=['"]result-link['"][^>]*>([^<]+)</a>`)
	ddgSnippetPattern = regexp.MustCompile(`<td[^>]*class=['"]result-snippet['"][^>]*>([^<]+(?:<[^>]+>[^<]*</[^>]+>)*[^<]*)</td>`)
	htmlTagPattern    = regexp.MustCompile(`<[^>]+>`)
)

// DuckDuckGo searches through DuckDuckGo's HTML lite interface.
type DuckDuckGo struct {
	client   *http.Client
	endpoint string
}

// NewDuckDuckGo creates a DuckDuckGo provider using client.
func NewDuckDuckGo(client *http.Client) *DuckDuckGo {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &DuckDuckGo{client: client, endpoint: duckDuckGoLiteURL}
}

// Name implements Provider.
func (d *DuckDuckGo) Name() string { return "duckduckgo" }

// Search posts the query to the lite page and scrapes the result table.
func (d *DuckDuckGo) Search(ctx context.Context, query string, maxResults int) ([]domain.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("query is empty")
	}

	form := url.Values{}
	form.Set("q", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo http %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return parseLiteResults(string(body), maxResults), nil
}

// parseLiteResults extracts result links and their snippets from the lite
// HTML page. Snippets are paired with links by position.
func parseLiteResults(page string, maxResults int) []domain.SearchResult {
	matches := ddgLinkPattern.FindAllStringSubmatch(page, -1)
	if len(matches) == 0 {
		matches = ddgLinkPatternAlt.FindAllStringSubmatch(page, -1)
	}
	snippets := ddgSnippetPattern.FindAllStringSubmatch(page, -1)

	var results []domain.SearchResult
	for i, m := range matches {
		if maxResults > 0 && len(results) >= maxResults {
			break
		}
		link := html.UnescapeString(strings.TrimSpace(m[1]))
		title := cleanHTML(m[2])
		if link == "" || title == "" {
			continue
		}
		var snippet string
		if i < len(snippets) {
			snippet = cleanHTML(snippets[i][1])
		}
		results = append(results, domain.SearchResult{
			Title:       title,
			URL:         link,
			Description: snippet,
		})
	}
	return results
}

func cleanHTML(s string) string {
	s = htmlTagPattern.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.TrimSpace(s)
}
