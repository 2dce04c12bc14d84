package search

import (
	"net/http"
	"time"
)

const defaultTimeout = 15 * time.Second

// Options configures provider construction.
type Options struct {
	BraveAPIKey  string
	TavilyAPIKey string
	Timeout      time.Duration
	HTTPClient   *http.Client
}

func (o Options) httpClient() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{Timeout: timeout}
}
