package config

import (
	"encoding/json"
	"fmt"
)

// DefaultSystemPrompt is the system prompt template used when none is
// configured. The {{CURRENT_TIME}} and {{MEMORIES}} tokens are substituted
// per request.
const DefaultSystemPrompt = `You are a helpful assistant with access to tools.
The current time is {{CURRENT_TIME}}.

{{MEMORIES}}

Use the available tools when they help you answer. Be concise.`

// Config represents the main application configuration
type Config struct {
	// Server
	Server ServerConfig `json:"server" mapstructure:"server"`

	// Agent / orchestration
	Agent AgentConfig `json:"agent" mapstructure:"agent"`

	// Completion providers
	OpenAI    OpenAIConfig    `json:"openai" mapstructure:"openai"`
	Anthropic AnthropicConfig `json:"anthropic" mapstructure:"anthropic"`

	// Cache store (optional)
	Redis RedisConfig `json:"redis" mapstructure:"redis"`

	// Caching
	Cache CacheConfig `json:"cache" mapstructure:"cache"`

	// Rate limiting
	RateLimit RateLimitConfig `json:"rate_limit" mapstructure:"rate_limit"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Data directory (memory notes database, logs)
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `json:"host" mapstructure:"host"`
	Port int    `json:"port" mapstructure:"port"`
}

// AgentConfig holds orchestrator configuration
type AgentConfig struct {
	MaxIterations  int    `json:"max_iterations" mapstructure:"max_iterations"`
	SystemPrompt   string `json:"system_prompt" mapstructure:"system_prompt"`
	RequestTimeout int    `json:"request_timeout" mapstructure:"request_timeout"` // seconds
	PlannerEnabled bool   `json:"planner_enabled" mapstructure:"planner_enabled"`
	PlannerModel   string `json:"planner_model" mapstructure:"planner_model"`
}

// OpenAIConfig holds OpenAI provider configuration
type OpenAIConfig struct {
	APIKey              string  `json:"api_key" mapstructure:"api_key"`
	Model               string  `json:"model" mapstructure:"model"`
	Temperature         float64 `json:"temperature" mapstructure:"temperature"`
	MaxTokens           int     `json:"max_tokens" mapstructure:"max_tokens"`
	ReasoningEffort     string  `json:"reasoning_effort" mapstructure:"reasoning_effort"`
	MaxCompletionTokens int     `json:"max_completion_tokens" mapstructure:"max_completion_tokens"`
}

// AnthropicConfig holds Anthropic provider configuration
type AnthropicConfig struct {
	APIKey string `json:"api_key" mapstructure:"api_key"`
	Model  string `json:"model" mapstructure:"model"`
}

// RedisConfig holds cache store configuration
type RedisConfig struct {
	URL string `json:"url" mapstructure:"url"`
}

// CacheConfig holds response/tool-result cache configuration
type CacheConfig struct {
	Enabled           bool `json:"enabled" mapstructure:"enabled"`
	ResponseTTL       int  `json:"response_ttl" mapstructure:"response_ttl"`               // seconds
	ToolResultTTL     int  `json:"tool_result_ttl" mapstructure:"tool_result_ttl"`         // seconds
	MemStoreSweepMins int  `json:"memstore_sweep_mins" mapstructure:"memstore_sweep_mins"` // in-memory store janitor cadence
}

// RateLimitConfig holds admission guard configuration
type RateLimitConfig struct {
	Enabled       bool `json:"enabled" mapstructure:"enabled"`
	MaxRequests   int  `json:"max_requests" mapstructure:"max_requests"`
	WindowSeconds int  `json:"window_seconds" mapstructure:"window_seconds"`
	BlockSeconds  int  `json:"block_seconds" mapstructure:"block_seconds"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `json:"level" mapstructure:"level"`
	File   string `json:"file" mapstructure:"file"`
	Pretty bool   `json:"pretty" mapstructure:"pretty"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Agent: AgentConfig{
			MaxIterations:  5,
			SystemPrompt:   DefaultSystemPrompt,
			RequestTimeout: 120,
			PlannerEnabled: false,
			PlannerModel:   "gpt-4o-mini",
		},
		OpenAI: OpenAIConfig{
			Model:               "gpt-4o",
			Temperature:         0.7,
			MaxTokens:           4096,
			ReasoningEffort:     "medium",
			MaxCompletionTokens: 8192,
		},
		Anthropic: AnthropicConfig{
			Model: "claude-sonnet-4-20250514",
		},
		Cache: CacheConfig{
			Enabled:           true,
			ResponseTTL:       300,
			ToolResultTTL:     600,
			MemStoreSweepMins: 1,
		},
		RateLimit: RateLimitConfig{
			Enabled:       true,
			MaxRequests:   20,
			WindowSeconds: 60,
			BlockSeconds:  300,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Pretty: false,
		},
	}
}

// String returns a JSON representation of the config with secrets redacted
func (c *Config) String() string {
	clone := *c
	if clone.OpenAI.APIKey != "" {
		clone.OpenAI.APIKey = "[REDACTED]"
	}
	if clone.Anthropic.APIKey != "" {
		clone.Anthropic.APIKey = "[REDACTED]"
	}
	if clone.Redis.URL != "" {
		clone.Redis.URL = "[REDACTED]"
	}
	data, _ := json.MarshalIndent(&clone, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535")
	}

	if c.Agent.MaxIterations <= 0 {
		return fmt.Errorf("agent max_iterations must be positive")
	}
	if c.Agent.RequestTimeout <= 0 {
		return fmt.Errorf("agent request_timeout must be positive")
	}

	if c.OpenAI.Model == "" {
		return fmt.Errorf("openai model is required")
	}
	if c.OpenAI.Temperature < 0 || c.OpenAI.Temperature > 2 {
		return fmt.Errorf("openai temperature must be between 0 and 2")
	}
	switch c.OpenAI.ReasoningEffort {
	case "", "minimal", "low", "medium", "high":
	default:
		return fmt.Errorf("invalid reasoning_effort %q (must be: minimal, low, medium, high)", c.OpenAI.ReasoningEffort)
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.MaxRequests <= 0 {
			return fmt.Errorf("rate_limit max_requests must be positive")
		}
		if c.RateLimit.WindowSeconds <= 0 {
			return fmt.Errorf("rate_limit window_seconds must be positive")
		}
		if c.RateLimit.BlockSeconds <= 0 {
			return fmt.Errorf("rate_limit block_seconds must be positive")
		}
	}

	if c.Cache.Enabled {
		if c.Cache.ResponseTTL <= 0 {
			return fmt.Errorf("cache response_ttl must be positive")
		}
		if c.Cache.ToolResultTTL <= 0 {
			return fmt.Errorf("cache tool_result_ttl must be positive")
		}
	}

	return nil
}
