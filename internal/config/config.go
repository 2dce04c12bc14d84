// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port           string
	GRPCPort       string // empty disables the gRPC health server
	AppEnv         string
	AllowedOrigins []string
	HistoryDSN     string
	SessionTTL     time.Duration

	LLM             LLMConfig
	Search          SearchConfig
	ConversationLog ConversationLogConfig
}

// LLMConfig points at an OpenAI-compatible chat completions endpoint.
type LLMConfig struct {
	BaseURL       string
	APIKey        string
	Model         string
	MaxToolRounds int
}

// SearchConfig selects and configures the web search provider.
type SearchConfig struct {
	Provider     string
	BraveAPIKey  string
	TavilyAPIKey string
	Timeout      time.Duration
}

// ConversationLogConfig controls JSON conversation logging.
type ConversationLogConfig struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		GRPCPort:       getEnv("GRPC_PORT", ""),
		AppEnv:         getEnv("APP_ENV", ""),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "*")),
		HistoryDSN:     getEnv("HISTORY_DSN", ":memory:"),
		SessionTTL:     getEnvDuration("SESSION_TTL", 60*time.Minute),
		LLM: LLMConfig{
			BaseURL:       getEnv("LLM_BASE_URL", "http://localhost:11434/v1/"),
			APIKey:        getEnv("LLM_API_KEY", "ollama"),
			Model:         getEnv("LLM_MODEL", "llama3.2"),
			MaxToolRounds: getEnvInt("LLM_MAX_TOOL_ROUNDS", 5),
		},
		Search: SearchConfig{
			Provider:     strings.ToLower(getEnv("SEARCH_PROVIDER", "duckduckgo")),
			BraveAPIKey:  getEnv("BRAVE_API_KEY", ""),
			TavilyAPIKey: getEnv("TAVILY_API_KEY", ""),
			Timeout:      getEnvDuration("SEARCH_TIMEOUT", 15*time.Second),
		},
		ConversationLog: ConversationLogConfig{
			Enabled:       getEnvBool("CONVERSATION_LOG_ENABLED", false),
			Dir:           getEnv("CONVERSATION_LOG_DIR", "./data/logs/conversations"),
			GlobalEnabled: getEnvBool("CONVERSATION_LOG_GLOBAL_ENABLED", false),
			GlobalPath:    getEnv("CONVERSATION_LOG_GLOBAL_PATH", "./data/logs/conversations/all.ndjson"),
			QueueSize:     queueSize,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.GRPCPort != "" && c.GRPCPort == c.Port {
		return fmt.Errorf("GRPC_PORT must differ from PORT")
	}
	if c.HistoryDSN == "" {
		return fmt.Errorf("HISTORY_DSN cannot be empty")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}
	if c.LLM.BaseURL == "" {
		return fmt.Errorf("LLM_BASE_URL cannot be empty")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("LLM_MODEL cannot be empty")
	}
	if c.LLM.MaxToolRounds <= 0 {
		return fmt.Errorf("LLM_MAX_TOOL_ROUNDS must be > 0")
	}
	switch strings.ToLower(strings.TrimSpace(c.Search.Provider)) {
	case "duckduckgo":
	case "brave":
		if c.Search.BraveAPIKey == "" {
			return fmt.Errorf("BRAVE_API_KEY is required when SEARCH_PROVIDER=brave")
		}
	case "tavily":
		if c.Search.TavilyAPIKey == "" {
			return fmt.Errorf("TAVILY_API_KEY is required when SEARCH_PROVIDER=tavily")
		}
	default:
		return fmt.Errorf("unknown SEARCH_PROVIDER %q", c.Search.Provider)
	}
	if c.Search.Timeout <= 0 {
		return fmt.Errorf("SEARCH_TIMEOUT must be > 0")
	}
	if c.ConversationLog.Dir == "" {
		return fmt.Errorf("CONVERSATION_LOG_DIR cannot be empty")
	}
	if c.ConversationLog.GlobalPath == "" {
		return fmt.Errorf("CONVERSATION_LOG_GLOBAL_PATH cannot be empty")
	}
	if c.ConversationLog.QueueSize <= 0 {
		return fmt.Errorf("CONVERSATION_LOG_QUEUE_SIZE must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
