package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

const litePage = `<html><body><table>
<tr><td><a rel="nofollow" href="https://news.example/one" class='result-link'>First &amp; best</a></td></tr>
<tr><td class='result-snippet'>Snippet <b>one</b> here</td></tr>
<tr><td><a rel="nofollow" href="https://news.example/two" class='result-link'>Second</a></td></tr>
<tr><td class='result-snippet'>Snippet two</td></tr>
</table></body></html>`

func TestParseLiteResults(t *testing.T) {
	t.Parallel()

	results := parseLiteResults(litePage, 10)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Title != "First & best" {
		t.Errorf("unexpected title %q", results[0].Title)
	}
	if results[0].URL != "https://news.example/one" {
		t.Errorf("unexpected url %q", results[0].URL)
	}
	if results[0].Description != "Snippet one here" {
		t.Errorf("unexpected description %q", results[0].Description)
	}

	if got := parseLiteResults(litePage, 1); len(got) != 1 {
		t.Fatalf("expected cap of 1, got %d", len(got))
	}
	if got := parseLiteResults("<html>nothing</html>", 10); len(got) != 0 {
		t.Fatalf("expected no results, got %d", len(got))
	}
}

func TestDuckDuckGoSearch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if q := r.PostForm.Get("q"); q != "electric vehicles" {
			t.Errorf("unexpected query %q", q)
		}
		_, _ = w.Write([]byte(litePage))
	}))
	defer srv.Close()

	d := NewDuckDuckGo(srv.Client())
	d.endpoint = srv.URL

	results, err := d.Search(context.Background(), "electric vehicles", MaxResults)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
}

func TestDuckDuckGoSearchBadStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	d := NewDuckDuckGo(srv.Client())
	d.endpoint = srv.URL

	if _, err := d.Search(context.Background(), "q", MaxResults); err == nil {
		t.Fatal("expected error for non-200 status")
	}
	if _, err := d.Search(context.Background(), "   ", MaxResults); err == nil {
		t.Fatal("expected error for empty query")
	}
}

func TestBraveSearch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Subscription-Token"); got != "secret" {
			t.Errorf("unexpected token %q", got)
		}
		if got := r.URL.Query().Get("count"); got != "10" {
			t.Errorf("unexpected count %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"web": map[string]any{
				"results": []map[string]string{
					{"title": "<strong>EV</strong> news", "url": "https://x.example", "description": "desc"},
				},
			},
		})
	}))
	defer srv.Close()

	b := NewBrave("secret", srv.Client())
	b.endpoint = srv.URL

	results, err := b.Search(context.Background(), "ev", MaxResults)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 || results[0].Title != "EV news" {
		t.Fatalf("unexpected results %+v", results)
	}
}

func TestTavilySearch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["query"] != "ev" {
			t.Errorf("unexpected query %v", body["query"])
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]string{
				{"title": "a", "url": "https://a.example", "content": "ca"},
				{"title": "b", "url": "https://b.example", "content": "cb"},
			},
		})
	}))
	defer srv.Close()

	tv := NewTavily("key", srv.Client())
	tv.endpoint = srv.URL

	results, err := tv.Search(context.Background(), "ev", MaxResults)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 || results[1].Description != "cb" {
		t.Fatalf("unexpected results %+v", results)
	}
}

func TestTavilySearchBadStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	tv := NewTavily("key", srv.Client())
	tv.endpoint = srv.URL

	if _, err := tv.Search(context.Background(), "ev", MaxResults); err == nil {
		t.Fatal("expected error")
	}
}

func TestCleanHTMLDecodesEntities(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"<b>First</b> &amp; best", "First & best"},
		{"AC&#x2F;DC", "AC/DC"},
		{"It&#8217;s here", "It\u2019s here"},
		{"&quot;quoted&quot;&nbsp;text", `"quoted" text`},
		{"  <span>trim</span>  ", "trim"},
	}
	for _, tt := range tests {
		if got := cleanHTML(tt.in); got != tt.want {
			t.Errorf("cleanHTML(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
