// Package api provides HTTP handlers for the newsdesk API.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/ashureev/newsdesk/internal/agent"
	"github.com/ashureev/newsdesk/internal/domain"
	"github.com/ashureev/newsdesk/internal/store"
)

// Info describes the configured backends for health reporting.
type Info struct {
	Model          string
	SearchProvider string
}

// HistoryNotifier is told when a session's history changes outside of its
// live stream, so open streams can refresh.
type HistoryNotifier interface {
	NotifyHistory(ref agent.SessionRef, history domain.History)
}

// Handler provides common handler utilities.
type Handler struct {
	svc      *agent.Service
	repo     store.Repository
	info     Info
	notifier HistoryNotifier
}

// NewHandler creates a new Handler with common dependencies. notifier may be
// nil.
func NewHandler(svc *agent.Service, repo store.Repository, info Info, notifier HistoryNotifier) *Handler {
	return &Handler{
		svc:      svc,
		repo:     repo,
		info:     info,
		notifier: notifier,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// ErrorWithMessage writes a JSON error response carrying a machine-readable
// code and a human-readable message.
func ErrorWithMessage(w http.ResponseWriter, status int, code, message string) {
	JSON(w, status, map[string]string{"error": code, "message": message})
}

// StatusForCode maps an interaction error code to an HTTP status.
func StatusForCode(code string) int {
	switch code {
	case agent.CodeEmptyTopic:
		return http.StatusBadRequest
	case agent.CodeSearchProviderFailure, agent.CodeInferenceFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) notify(ref agent.SessionRef, history domain.History) {
	if h.notifier != nil {
		h.notifier.NotifyHistory(ref, history)
	}
}
