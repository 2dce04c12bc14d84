package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/newsdesk/internal/domain"
	"github.com/ashureev/newsdesk/internal/search"
	"github.com/ashureev/newsdesk/internal/store"
	"github.com/google/uuid"
)

// ErrEmptyTopic is returned when an interaction carries no topic text.
var ErrEmptyTopic = errors.New("topic is required")

// Error codes reported to clients.
const (
	CodeEmptyTopic            = "empty_topic"
	CodeSearchProviderFailure = "search_provider_failure"
	CodeInferenceFailure      = "inference_failure"
	CodeInternal              = "internal_error"
)

// ErrorCode classifies an interaction error for clients. Search failures
// take precedence so they are never reported as inference failures.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrEmptyTopic):
		return CodeEmptyTopic
	case errors.Is(err, search.ErrProviderFailure):
		return CodeSearchProviderFailure
	case errors.Is(err, ErrInference):
		return CodeInferenceFailure
	default:
		return CodeInternal
	}
}

// Workflow runs the news pipeline for one topic.
type Workflow interface {
	RunWorkflowWithProgress(ctx context.Context, topic string, history domain.History, progress ProgressFunc) (string, error)
}

// Ensure Orchestrator implements Workflow.
var _ Workflow = (*Orchestrator)(nil)

// SessionRef identifies the conversation an interaction belongs to.
type SessionRef struct {
	UserID    string
	SessionID string
}

// Key returns the storage key of the session.
func (r SessionRef) Key() string {
	return r.UserID + ":" + r.SessionID
}

// Exchange is the outcome of a successful interaction.
type Exchange struct {
	RunID   string         `json:"run_id"`
	Summary string         `json:"summary"`
	History domain.History `json:"history"`
}

// Service owns conversation history and runs interactions against it.
// Interactions on the same session are serialised so turns are committed
// in order; different sessions run independently.
type Service struct {
	workflow Workflow
	repo     store.Repository
	log      ConversationLogger
	locks    sync.Map // session key -> *sync.Mutex
}

// NewService creates a new service.
func NewService(workflow Workflow, repo store.Repository, conversationLogger ConversationLogger) *Service {
	if conversationLogger == nil {
		conversationLogger = noopConversationLogger{}
	}
	return &Service{
		workflow: workflow,
		repo:     repo,
		log:      conversationLogger,
	}
}

func (s *Service) lock(ref SessionRef) func() {
	v, _ := s.locks.LoadOrStore(ref.Key(), &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Ask runs the workflow for topic against the session's confirmed history.
// On success the user turn and the summary are committed together; on
// failure history is left untouched.
func (s *Service) Ask(ctx context.Context, ref SessionRef, topic string, progress ProgressFunc) (*Exchange, error) {
	if strings.TrimSpace(topic) == "" {
		return nil, ErrEmptyTopic
	}

	unlock := s.lock(ref)
	defer unlock()

	runID := uuid.NewString()
	// Keep the idle reaper away from a session with a run in flight.
	if err := s.repo.Touch(ctx, ref.Key()); err != nil {
		return nil, fmt.Errorf("touch session: %w", err)
	}
	history, err := s.repo.History(ctx, ref.Key())
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	slog.Info("Summary request",
		"run_id", runID,
		"user_id", ref.UserID,
		"session_id", ref.SessionID,
		"topic_length", len(topic),
		"history_len", len(history),
	)
	s.logTurn(ref, runID, "outbound", "user_topic", topic, nil)

	start := time.Now()
	summary, err := s.workflow.RunWorkflowWithProgress(ctx, topic, history, progress)
	if err != nil {
		slog.Error("Summary workflow failed", "run_id", runID, "session_id", ref.SessionID, "error", err)
		s.logTurn(ref, runID, "inbound", "workflow_error", err.Error(), nil)
		return nil, err
	}

	user := domain.NewUserMessage(topic)
	assistant := domain.NewAssistantMessage(summary)
	if err := s.repo.AppendExchange(ctx, ref.Key(), user, assistant); err != nil {
		return nil, fmt.Errorf("commit exchange: %w", err)
	}
	s.logTurn(ref, runID, "inbound", "assistant_summary", summary, map[string]any{
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return &Exchange{
		RunID:   runID,
		Summary: summary,
		History: history.With(user).With(assistant),
	}, nil
}

// History returns the session's confirmed turns.
func (s *Service) History(ctx context.Context, ref SessionRef) (domain.History, error) {
	return s.repo.History(ctx, ref.Key())
}

// Clear resets the session's history to empty. It waits for an in-flight
// interaction on the same session to finish first.
func (s *Service) Clear(ctx context.Context, ref SessionRef) (int64, error) {
	unlock := s.lock(ref)
	defer unlock()

	n, err := s.repo.ClearHistory(ctx, ref.Key())
	if err != nil {
		return 0, err
	}
	slog.Info("Conversation history cleared", "user_id", ref.UserID, "session_id", ref.SessionID, "turns", n)
	return n, nil
}

// Close releases service resources.
func (s *Service) Close() {
	if err := s.log.Close(); err != nil {
		slog.Warn("failed to close conversation logger", "error", err)
	}
}

func (s *Service) logTurn(ref SessionRef, runID, direction, eventType, content string, meta map[string]any) {
	if meta == nil {
		meta = map[string]any{}
	}
	meta["run_id"] = runID
	s.log.Log(ConversationLogEvent{
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		UserID:     ref.UserID,
		SessionID:  ref.SessionID,
		Channel:    "summary",
		Direction:  direction,
		EventType:  eventType,
		ContentRaw: content,
		Content:    cleanForReadability(content),
		Meta:       meta,
	})
}
