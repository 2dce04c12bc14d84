//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/ashureev/newsdesk/internal/agent"
	"github.com/ashureev/newsdesk/internal/domain"
	"github.com/ashureev/newsdesk/internal/identity"
	"github.com/ashureev/newsdesk/internal/search"
	"github.com/ashureev/newsdesk/internal/store"
	"github.com/go-chi/chi/v5"
)

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

type fakeWorkflow struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeWorkflow) RunWorkflowWithProgress(_ context.Context, topic string, _ domain.History, _ agent.ProgressFunc) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "Summary of " + topic, nil
}

type recordingNotifier struct {
	mu    sync.Mutex
	sizes []int
}

func (n *recordingNotifier) NotifyHistory(_ agent.SessionRef, history domain.History) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sizes = append(n.sizes, len(history))
}

type testEnv struct {
	router   chi.Router
	workflow *fakeWorkflow
	repo     *store.SQLiteStore
	notifier *recordingNotifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repo, err := store.NewSQLite(store.DefaultDSN)
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	wf := &fakeWorkflow{}
	notifier := &recordingNotifier{}
	h := NewHandler(agent.NewService(wf, repo, nil), repo, Info{Model: "llama3.2", SearchProvider: "duckduckgo"}, notifier)

	r := chi.NewRouter()
	r.Route("/api", h.RegisterRoutes)
	return &testEnv{router: r, workflow: wf, repo: repo, notifier: notifier}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req = req.WithContext(identity.WithIdentity(req.Context(), "anon_test", "tab-1"))
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return v
}

func TestSummarizeSuccess(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/summary", `{"topic":"electric vehicles"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decode[SummaryResponse](t, rec)
	if resp.Summary != "Summary of electric vehicles" {
		t.Fatalf("unexpected summary %q", resp.Summary)
	}
	if resp.RunID == "" {
		t.Fatal("expected run id")
	}
	if len(resp.History) != 2 || resp.History[0].Role != domain.RoleUser || resp.History[1].Role != domain.RoleAssistant {
		t.Fatalf("unexpected history %#v", resp.History)
	}
	if len(env.notifier.sizes) != 1 || env.notifier.sizes[0] != 2 {
		t.Fatalf("expected notifier with 2 turns, got %v", env.notifier.sizes)
	}
}

func TestSummarizeErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wfErr      error
		wantStatus int
		wantCode   string
		wantCalls  int
	}{
		{"empty topic", `{"topic":"   "}`, nil, http.StatusBadRequest, agent.CodeEmptyTopic, 0},
		{"missing topic", `{}`, nil, http.StatusBadRequest, agent.CodeEmptyTopic, 0},
		{"invalid json", `{topic`, nil, http.StatusBadRequest, "invalid_request", 0},
		{
			"search failure", `{"topic":"x"}`,
			&agent.StageError{Stage: agent.StageRetrieving, Err: &agent.ToolError{Tool: "get_news_articles", Err: fmt.Errorf("%w: duckduckgo: timeout", search.ErrProviderFailure)}},
			http.StatusBadGateway, agent.CodeSearchProviderFailure, 1,
		},
		{
			"inference failure", `{"topic":"x"}`,
			&agent.StageError{Stage: agent.StageSummarizing, Err: agent.ErrInference},
			http.StatusBadGateway, agent.CodeInferenceFailure, 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.workflow.err = tt.wfErr

			rec := env.do(t, http.MethodPost, "/api/summary", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			got := decode[map[string]string](t, rec)
			if got["error"] != tt.wantCode {
				t.Fatalf("error code = %q, want %q", got["error"], tt.wantCode)
			}
			if got["message"] == "" {
				t.Fatal("expected a human-readable message")
			}
			if env.workflow.calls != tt.wantCalls {
				t.Fatalf("workflow calls = %d, want %d", env.workflow.calls, tt.wantCalls)
			}

			hist := decode[HistoryResponse](t, env.do(t, http.MethodGet, "/api/history", ""))
			if len(hist.History) != 0 {
				t.Fatalf("failed request must leave history empty, got %d turns", len(hist.History))
			}
		})
	}
}

func TestSummarizeRequiresIdentity(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/api/summary", strings.NewReader(`{"topic":"x"}`))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestSummarizeEmptyTopicsDoNotThrottle(t *testing.T) {
	env := newTestEnv(t)

	for i := 0; i < 5; i++ {
		if rec := env.do(t, http.MethodPost, "/api/summary", `{"topic":"  "}`); rec.Code != http.StatusBadRequest {
			t.Fatalf("empty topic status = %d, want 400", rec.Code)
		}
	}
	for i := 0; i < 20; i++ {
		rec := env.do(t, http.MethodPost, "/api/summary", `{"topic":"electric vehicles"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, body %s", i, rec.Code, rec.Body.String())
		}
	}
	if env.workflow.calls != 20 {
		t.Fatalf("workflow calls = %d, want 20", env.workflow.calls)
	}
}

func TestHistoryAndClear(t *testing.T) {
	env := newTestEnv(t)

	empty := decode[HistoryResponse](t, env.do(t, http.MethodGet, "/api/history", ""))
	if empty.History == nil || len(empty.History) != 0 {
		t.Fatalf("expected empty non-nil history, got %#v", empty.History)
	}

	for _, topic := range []string{"a", "b"} {
		if rec := env.do(t, http.MethodPost, "/api/summary", `{"topic":"`+topic+`"}`); rec.Code != http.StatusOK {
			t.Fatalf("summary status = %d", rec.Code)
		}
	}

	hist := decode[HistoryResponse](t, env.do(t, http.MethodGet, "/api/history", ""))
	if len(hist.History) != 4 || hist.History[0].Content != "a" || hist.History[3].Content != "Summary of b" {
		t.Fatalf("unexpected history %#v", hist.History)
	}

	rec := env.do(t, http.MethodDelete, "/api/history", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("clear status = %d", rec.Code)
	}
	if cleared := decode[map[string]int64](t, rec); cleared["cleared"] != 4 {
		t.Fatalf("cleared = %d, want 4", cleared["cleared"])
	}

	hist = decode[HistoryResponse](t, env.do(t, http.MethodGet, "/api/history", ""))
	if len(hist.History) != 0 {
		t.Fatalf("expected empty history after clear, got %d", len(hist.History))
	}
	if last := env.notifier.sizes[len(env.notifier.sizes)-1]; last != 0 {
		t.Fatalf("expected clear to notify empty history, got %d", last)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decode[map[string]any](t, rec)
	if body["status"] != "healthy" || body["model"] != "llama3.2" || body["search_provider"] != "duckduckgo" {
		t.Fatalf("unexpected health body %v", body)
	}

	_ = env.repo.Close()
	rec = env.do(t, http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status after close = %d, want 503", rec.Code)
	}
}

func TestStatusForCode(t *testing.T) {
	tests := map[string]int{
		agent.CodeEmptyTopic:            http.StatusBadRequest,
		agent.CodeSearchProviderFailure: http.StatusBadGateway,
		agent.CodeInferenceFailure:      http.StatusBadGateway,
		agent.CodeInternal:              http.StatusInternalServerError,
	}
	for code, want := range tests {
		if got := StatusForCode(code); got != want {
			t.Errorf("StatusForCode(%q) = %d, want %d", code, got, want)
		}
	}
}
