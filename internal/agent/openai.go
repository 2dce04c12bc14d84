package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/ashureev/newsdesk/internal/domain"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const toolArgument = "query"

// OpenAIConfig holds configuration for an OpenAI-compatible backend.
type OpenAIConfig struct {
	BaseURL       string
	APIKey        string
	Model         string
	MaxToolRounds int
	HTTPClient    *http.Client
}

// DefaultOpenAIConfig targets a local Ollama server.
func DefaultOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		BaseURL:       "http://localhost:11434/v1/",
		APIKey:        "ollama",
		Model:         "llama3.2",
		MaxToolRounds: 5,
	}
}

// OpenAIBackend runs roles against an OpenAI-compatible chat completions API.
type OpenAIBackend struct {
	client        openai.Client
	model         string
	maxToolRounds int
	logger        *slog.Logger
}

// NewOpenAIBackend creates a backend. The SDK's automatic retries are
// disabled: each model call is attempted once.
func NewOpenAIBackend(cfg OpenAIConfig, logger *slog.Logger) *OpenAIBackend {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultOpenAIConfig()
	if cfg.Model == "" {
		cfg.Model = defaults.Model
	}
	if cfg.MaxToolRounds <= 0 {
		cfg.MaxToolRounds = defaults.MaxToolRounds
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	return &OpenAIBackend{
		client:        openai.NewClient(opts...),
		model:         cfg.Model,
		maxToolRounds: cfg.MaxToolRounds,
		logger:        logger,
	}
}

// Model implements Backend.
func (b *OpenAIBackend) Model() string { return b.model }

// Run implements Backend. Tool calls requested by the model are executed in
// order and their results fed back until the model answers in plain text.
func (b *OpenAIBackend) Run(ctx context.Context, role Role, tools []Tool, messages []domain.Message) (*Response, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(b.model),
		Messages: toMessageParams(role, messages),
	}

	byName := make(map[string]Tool, len(tools))
	for _, t := range tools {
		byName[t.Name()] = t
		params.Tools = append(params.Tools, toToolParam(t))
	}

	resp := &Response{}
	for round := 0; ; round++ {
		completion, err := b.client.Chat.Completions.New(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInference, role.Name, err)
		}
		if len(completion.Choices) == 0 {
			return nil, fmt.Errorf("%w: %s: no choices returned", ErrInference, role.Name)
		}

		msg := completion.Choices[0].Message
		if len(msg.ToolCalls) == 0 {
			resp.Messages = append(resp.Messages, domain.NewAssistantMessage(msg.Content))
			return resp, nil
		}

		if round >= b.maxToolRounds {
			return nil, fmt.Errorf("%w: %s: exceeded %d tool rounds", ErrInference, role.Name, b.maxToolRounds)
		}

		if msg.Content != "" {
			resp.Messages = append(resp.Messages, domain.NewAssistantMessage(msg.Content))
		}
		params.Messages = append(params.Messages, msg.ToParam())

		for _, call := range msg.ToolCalls {
			name := call.Function.Name
			tool, ok := byName[name]
			if !ok {
				b.logger.Warn("Model requested unknown tool", "role", role.Name, "tool", name)
				params.Messages = append(params.Messages, openai.ToolMessage("error: unknown tool "+name, call.ID))
				continue
			}

			input := toolInput(call.Function.Arguments)
			if input == "" {
				b.logger.Warn("Model called tool without a query", "role", role.Name, "tool", name)
				params.Messages = append(params.Messages, openai.ToolMessage("error: missing "+toolArgument, call.ID))
				continue
			}
			b.logger.Debug("Invoking tool", "role", role.Name, "tool", name, "input", input, "round", round+1)

			result, err := tool.Invoke(ctx, input)
			if err != nil {
				return nil, &ToolError{Tool: name, Err: err}
			}
			resp.ToolsUsed = append(resp.ToolsUsed, name)
			params.Messages = append(params.Messages, openai.ToolMessage(result, call.ID))
		}
	}
}

func toMessageParams(role Role, messages []domain.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)+1)
	if role.Instructions != "" {
		out = append(out, openai.SystemMessage(role.Instructions))
	}
	for _, m := range messages {
		switch m.Role {
		case domain.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

func toToolParam(t Tool) openai.ChatCompletionToolUnionParam {
	return openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
		Name:        t.Name(),
		Description: openai.String(t.Description()),
		Parameters: openai.FunctionParameters{
			"type": "object",
			"properties": map[string]any{
				toolArgument: map[string]string{
					"type":        "string",
					"description": "The search phrase",
				},
			},
			"required": []string{toolArgument},
		},
	})
}

// toolInput extracts the single string argument of a tool call. Models do
// not always use the advertised name, so otherwise the non-blank string
// value with the lowest key is taken. Non-JSON arguments are passed through
// as-is. An empty result means the call carried no usable query.
func toolInput(arguments string) string {
	var args map[string]any
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return strings.TrimSpace(arguments)
	}
	if v, ok := args[toolArgument].(string); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if s, ok := args[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}
