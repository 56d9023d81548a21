package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr               string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout  time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel           string        `mapstructure:"log_level" yaml:"log_level"`
	DatabasePath       string        `mapstructure:"database_path" yaml:"database_path"`
	MaxMessageBytes    int64         `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	RateLimitPerMinute int           `mapstructure:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`
	NATSURL            string        `mapstructure:"nats_url" yaml:"nats_url"`

	Moderator ModeratorConfig `mapstructure:"moderator" yaml:"moderator"`
	Session   SessionConfig   `mapstructure:"session" yaml:"session"`
	Assistant AssistantConfig `mapstructure:"assistant" yaml:"assistant"`
}

// ModeratorConfig names the single privileged account.
type ModeratorConfig struct {
	Username string `mapstructure:"username" yaml:"username"`
	// Password seeds the moderator account on first start. Leave empty once the account exists.
	Password string `mapstructure:"password" yaml:"password"`
}

// SessionConfig configures session tokens and their backing store.
type SessionConfig struct {
	Secret   string        `mapstructure:"secret" yaml:"secret"`
	TTL      time.Duration `mapstructure:"ttl" yaml:"ttl"`
	Backend  string        `mapstructure:"backend" yaml:"backend"` // memory or redis
	RedisURL string        `mapstructure:"redis_url" yaml:"redis_url"`
}

// AssistantConfig configures the external completion providers.
type AssistantConfig struct {
	Timeout    time.Duration    `mapstructure:"timeout" yaml:"timeout"`
	OpenRouter OpenRouterConfig `mapstructure:"openrouter" yaml:"openrouter"`
	Ollama     OllamaConfig     `mapstructure:"ollama" yaml:"ollama"`
}

// OpenRouterConfig drives the "@ai " prefix.
type OpenRouterConfig struct {
	URL          string `mapstructure:"url" yaml:"url"`
	APIKey       string `mapstructure:"api_key" yaml:"api_key"`
	Model        string `mapstructure:"model" yaml:"model"`
	SystemPrompt string `mapstructure:"system_prompt" yaml:"system_prompt"`
	Sender       string `mapstructure:"sender" yaml:"sender"`
}

// OllamaConfig drives the "lam " prefix.
type OllamaConfig struct {
	URL    string `mapstructure:"url" yaml:"url"`
	Model  string `mapstructure:"model" yaml:"model"`
	Sender string `mapstructure:"sender" yaml:"sender"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:               ":8080",
		ReadHeaderTimeout:  5 * time.Second,
		ShutdownTimeout:    5 * time.Second,
		LogLevel:           "info",
		DatabasePath:       "roomchat.db",
		MaxMessageBytes:    64 << 10,
		RateLimitPerMinute: 120,
		Moderator: ModeratorConfig{
			Username: "Admin",
		},
		Session: SessionConfig{
			TTL:     24 * time.Hour,
			Backend: "memory",
		},
		Assistant: AssistantConfig{
			Timeout: 60 * time.Second,
			OpenRouter: OpenRouterConfig{
				URL:    "https://openrouter.ai/api/v1/chat/completions",
				Model:  "openai/gpt-oss-120b:free",
				Sender: "Sydney",
			},
			Ollama: OllamaConfig{
				Model:  "gemma3:1b",
				Sender: "AI",
			},
		},
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.MaxMessageBytes != 0 {
		c.MaxMessageBytes = other.MaxMessageBytes
	}
	if other.RateLimitPerMinute != 0 {
		c.RateLimitPerMinute = other.RateLimitPerMinute
	}
	if other.NATSURL != "" {
		c.NATSURL = other.NATSURL
	}
	if other.Moderator.Username != "" {
		c.Moderator.Username = other.Moderator.Username
	}
	if other.Moderator.Password != "" {
		c.Moderator.Password = other.Moderator.Password
	}
	if other.Session.Secret != "" {
		c.Session.Secret = other.Session.Secret
	}
	if other.Session.Backend != "" {
		c.Session.Backend = other.Session.Backend
	}
	if other.Session.RedisURL != "" {
		c.Session.RedisURL = other.Session.RedisURL
	}
}
