// Package agent runs the two-stage news workflow: a news agent that searches
// and reports, followed by an editor that summarises the findings.
package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/ashureev/newsdesk/internal/domain"
)

// ErrInference marks a failed model invocation or one that produced no
// usable final message.
var ErrInference = errors.New("inference failure")

// Role is the persona a model invocation is configured with.
type Role struct {
	Name         string
	Instructions string
}

// NewsRole searches and reports without opinion.
var NewsRole = Role{
	Name: "News Assistant",
	Instructions: "You provide the latest news articles for a given topic using web search. " +
		"Search for the exact keywords and return results matching the search phrase. " +
		"Do not hallucinate and do not provide your own opinion.",
}

// EditorRole summarises strictly from the findings it is given.
var EditorRole = Role{
	Name: "Editor Assistant",
	Instructions: "Based on the findings, please provide complete details about the topic " +
		"based strictly on the details provided. Do not make up content. " +
		"I am using these findings for a sales pitch, so accuracy is important.",
}

// Tool is a capability a model may invoke while generating.
type Tool interface {
	Name() string
	Description() string
	Invoke(ctx context.Context, input string) (string, error)
}

// Response is the output of a single backend run.
type Response struct {
	// Messages generated during the run, in order. The last one carries
	// the final text.
	Messages  []domain.Message
	ToolsUsed []string
}

// Content returns the content of the last message, or "" when there is none.
func (r *Response) Content() string {
	if r == nil || len(r.Messages) == 0 {
		return ""
	}
	return r.Messages[len(r.Messages)-1].Content
}

// Stage is a step of a workflow run.
type Stage string

const (
	StageRetrieving  Stage = "retrieving"
	StageSummarizing Stage = "summarizing"
	StageDone        Stage = "done"
	StageFailed      Stage = "failed"
)

// ProgressFunc receives stage transitions of a workflow run.
type ProgressFunc func(stage Stage)

// StageError reports which stage of a workflow run failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// ToolError is returned by a Backend when a tool invocation fails. The
// underlying error is kept so callers can tell which collaborator failed.
type ToolError struct {
	Tool string
	Err  error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %s: %v", e.Tool, e.Err)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}
