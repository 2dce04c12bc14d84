package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/newsdesk/internal/domain"
)

// Orchestrator chains the news agent and the editor.
type Orchestrator struct {
	backend Backend
	tools   []Tool
	logger  *slog.Logger
}

// NewOrchestrator creates an orchestrator. tools are bound to the news
// agent only; the editor works from the findings alone.
func NewOrchestrator(backend Backend, logger *slog.Logger, tools ...Tool) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{backend: backend, tools: tools, logger: logger}
}

// RunWorkflow runs both stages for topic on top of history and returns the
// editor's text unmodified. history is only read.
func (o *Orchestrator) RunWorkflow(ctx context.Context, topic string, history domain.History) (string, error) {
	return o.RunWorkflowWithProgress(ctx, topic, history, nil)
}

// RunWorkflowWithProgress is RunWorkflow reporting each stage transition to
// progress (which may be nil).
func (o *Orchestrator) RunWorkflowWithProgress(ctx context.Context, topic string, history domain.History, progress ProgressFunc) (string, error) {
	report := func(s Stage) {
		if progress != nil {
			progress(s)
		}
	}
	start := time.Now()

	report(StageRetrieving)
	rawFindings, err := o.invoke(ctx, StageRetrieving, NewsRole, o.tools, history.With(domain.NewUserMessage(topic)))
	if err != nil {
		report(StageFailed)
		return "", err
	}

	report(StageSummarizing)
	summary, err := o.invoke(ctx, StageSummarizing, EditorRole, nil, history.With(domain.NewUserMessage(rawFindings)))
	if err != nil {
		report(StageFailed)
		return "", err
	}

	report(StageDone)
	o.logger.Info("Workflow completed",
		"history_len", len(history),
		"findings_len", len(rawFindings),
		"summary_len", len(summary),
		"duration", time.Since(start),
	)
	return summary, nil
}

func (o *Orchestrator) invoke(ctx context.Context, stage Stage, role Role, tools []Tool, messages domain.History) (string, error) {
	o.logger.Debug("Invoking model", "stage", stage, "role", role.Name, "messages", len(messages), "tools", len(tools))

	resp, err := o.backend.Run(ctx, role, tools, messages)
	if err != nil {
		var toolErr *ToolError
		if !errors.As(err, &toolErr) && !errors.Is(err, ErrInference) {
			err = fmt.Errorf("%w: %w", ErrInference, err)
		}
		o.logger.Warn("Model invocation failed", "stage", stage, "role", role.Name, "error", err)
		return "", &StageError{Stage: stage, Err: err}
	}

	content := resp.Content()
	if strings.TrimSpace(content) == "" {
		o.logger.Warn("Model returned no content", "stage", stage, "role", role.Name)
		return "", &StageError{Stage: stage, Err: fmt.Errorf("%w: %s returned an empty message", ErrInference, role.Name)}
	}

	if len(resp.ToolsUsed) > 0 {
		o.logger.Info("Model used tools", "stage", stage, "tools_used", resp.ToolsUsed)
	}
	return content, nil
}
