// Package search fetches ranked web results for a topic and formats them
// into the text block handed to the news agent.
//
// Available providers:
//
//   - DuckDuckGo: no API key required (scrapes lite.duckduckgo.com)
//   - Brave: requires an API key sent via X-Subscription-Token
//   - Tavily: requires an API key
//
// Providers make exactly one outbound request per call. They do not retry,
// back off or cache.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ashureev/newsdesk/internal/domain"
)

// MaxResults is the number of ranked results requested per topic.
const MaxResults = 10

// ErrProviderFailure marks a failed provider call (network, timeout, bad
// status, undecodable payload). Zero results is not a failure.
var ErrProviderFailure = errors.New("search provider failure")

// Provider executes a query and returns at most maxResults ranked results.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, maxResults int) ([]domain.SearchResult, error)
}

// Adapter turns provider results into a single text block.
type Adapter struct {
	provider Provider
	logger   *slog.Logger
}

// NewAdapter creates an adapter over provider.
func NewAdapter(provider Provider, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{provider: provider, logger: logger}
}

// Provider returns the underlying provider.
func (a *Adapter) Provider() Provider {
	return a.provider
}

// FetchSummaries searches for topic and formats up to MaxResults results.
// When the provider returns nothing it returns NoResultsText(topic). A
// provider error is returned wrapped in ErrProviderFailure.
func (a *Adapter) FetchSummaries(ctx context.Context, topic string) (string, error) {
	results, err := a.provider.Search(ctx, topic, MaxResults)
	if err != nil {
		a.logger.Warn("Search provider failed", "provider", a.provider.Name(), "topic", topic, "error", err)
		return "", fmt.Errorf("%w: %s: %w", ErrProviderFailure, a.provider.Name(), err)
	}
	if len(results) > MaxResults {
		results = results[:MaxResults]
	}

	a.logger.Debug("Search completed", "provider", a.provider.Name(), "topic", topic, "results", len(results))

	if len(results) == 0 {
		return NoResultsText(topic), nil
	}
	return FormatResults(results), nil
}

// NoResultsText is the fallback payload used when a topic has no results.
func NoResultsText(topic string) string {
	return fmt.Sprintf("Could not find news results for %s.", topic)
}

// FormatResults renders results as Title/URL/Description triples separated
// by blank lines, preserving order.
func FormatResults(results []domain.SearchResult) string {
	entries := make([]string, 0, len(results))
	for _, r := range results {
		entries = append(entries, fmt.Sprintf("Title: %s\nURL: %s\nDescription: %s", r.Title, r.URL, r.Description))
	}
	return strings.Join(entries, "\n\n")
}

// New builds the provider named by name ("duckduckgo", "brave" or "tavily").
func New(name string, opts Options) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "duckduckgo":
		return NewDuckDuckGo(opts.httpClient()), nil
	case "brave":
		if opts.BraveAPIKey == "" {
			return nil, errors.New("brave: API key is missing")
		}
		return NewBrave(opts.BraveAPIKey, opts.httpClient()), nil
	case "tavily":
		if opts.TavilyAPIKey == "" {
			return nil, errors.New("tavily: API key is missing")
		}
		return NewTavily(opts.TavilyAPIKey, opts.httpClient()), nil
	default:
		return nil, fmt.Errorf("unknown search provider: %s", name)
	}
}
