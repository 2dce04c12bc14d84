package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/newsdesk/internal/agent"
	"github.com/ashureev/newsdesk/internal/domain"
	"github.com/ashureev/newsdesk/internal/identity"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

const (
	defaultMaxRequestBodySize = 1 << 20 // 1MB
	healthCheckTimeout        = 5 * time.Second
)

// SummaryRequest is the body of POST /api/summary.
type SummaryRequest struct {
	Topic string `json:"topic"`
}

// SummaryResponse is returned by a successful POST /api/summary.
type SummaryResponse struct {
	RunID   string           `json:"run_id"`
	Summary string           `json:"summary"`
	History []domain.Message `json:"history"`
}

// HistoryResponse is returned by GET /api/history.
type HistoryResponse struct {
	History []domain.Message `json:"history"`
}

// RegisterRoutes registers the summary, history and health routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/summary", h.Summarize)
	r.Get("/history", h.GetHistory)
	r.Delete("/history", h.ClearHistory)
	r.Get("/health", h.Health)
}

func sessionRef(r *http.Request) agent.SessionRef {
	return agent.SessionRef{
		UserID:    identity.UserIDFromContext(r.Context()),
		SessionID: identity.SessionIDFromContext(r.Context()),
	}
}

// Summarize handles POST /api/summary.
func (h *Handler) Summarize(w http.ResponseWriter, r *http.Request) {
	ref := sessionRef(r)
	if ref.UserID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, defaultMaxRequestBodySize)
	var req SummaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		ErrorWithMessage(w, http.StatusBadRequest, "invalid_request", "Request body must be JSON with a topic field.")
		return
	}

	slog.Info("Summary HTTP request",
		"request_id", chiMiddleware.GetReqID(r.Context()),
		"user_id", ref.UserID,
		"session_id", ref.SessionID,
	)

	ex, err := h.svc.Ask(r.Context(), ref, req.Topic, nil)
	if err != nil {
		code := agent.ErrorCode(err)
		status := StatusForCode(code)
		if status >= http.StatusInternalServerError {
			slog.Error("Summary request failed", "user_id", ref.UserID, "code", code, "error", err)
		}
		ErrorWithMessage(w, status, code, UserMessage(code))
		return
	}

	h.notify(ref, ex.History)
	JSON(w, http.StatusOK, SummaryResponse{
		RunID:   ex.RunID,
		Summary: ex.Summary,
		History: ex.History,
	})
}

// GetHistory handles GET /api/history.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	ref := sessionRef(r)
	history, err := h.svc.History(r.Context(), ref)
	if err != nil {
		slog.Error("Failed to load history", "user_id", ref.UserID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	JSON(w, http.StatusOK, HistoryResponse{History: history.Clone()})
}

// ClearHistory handles DELETE /api/history.
func (h *Handler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	ref := sessionRef(r)
	n, err := h.svc.Clear(r.Context(), ref)
	if err != nil {
		slog.Error("Failed to clear history", "user_id", ref.UserID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to clear history")
		return
	}
	h.notify(ref, domain.History{})
	JSON(w, http.StatusOK, map[string]int64{"cleared": n})
}

// Health returns the health status of the API and its dependencies.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := map[string]interface{}{
		"status":          "healthy",
		"checks":          checks,
		"model":           h.info.Model,
		"search_provider": h.info.SearchProvider,
	}
	statusCode := http.StatusOK

	if err := h.repo.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		status["status"] = "degraded"
		checks["history_store"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["history_store"] = "ok"
	}

	JSON(w, statusCode, status)
}

// UserMessage returns the human-readable text for an error code.
func UserMessage(code string) string {
	switch code {
	case agent.CodeEmptyTopic:
		return "Please enter a topic."
	case agent.CodeSearchProviderFailure:
		return "The news search service is unavailable. Please try again."
	case agent.CodeInferenceFailure:
		return "The language model failed to produce a summary. Please try again."
	default:
		return "Something went wrong. Please try again."
	}
}
