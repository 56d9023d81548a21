package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	envConfigDefaultPath = "ROOMCHAT_CONFIG_DEFAULT_PATH"
	defaultConfigName    = "config.yaml"
)

// Load builds configuration from defaults, optional config file, env vars, and returns the resolved path.
// Precedence: defaults < config file < env vars < caller overrides.
func Load(logger *zerolog.Logger, explicitPath string) (Config, string, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, cfg)

	v.SetEnvPrefix("ROOMCHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configPath := resolveConfigPath(explicitPath)
	v.SetConfigFile(configPath)

	if err := readOrCreate(v, configPath, cfg, logger); err != nil {
		return cfg, configPath, err
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, configPath, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, configPath, nil
}

// setDefaults registers every key so AutomaticEnv can override nested values.
func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("addr", cfg.Addr)
	v.SetDefault("read_header_timeout", cfg.ReadHeaderTimeout)
	v.SetDefault("shutdown_timeout", cfg.ShutdownTimeout)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("database_path", cfg.DatabasePath)
	v.SetDefault("max_message_bytes", cfg.MaxMessageBytes)
	v.SetDefault("rate_limit_per_minute", cfg.RateLimitPerMinute)
	v.SetDefault("nats_url", cfg.NATSURL)

	v.SetDefault("moderator.username", cfg.Moderator.Username)
	v.SetDefault("moderator.password", cfg.Moderator.Password)

	v.SetDefault("session.secret", cfg.Session.Secret)
	v.SetDefault("session.ttl", cfg.Session.TTL)
	v.SetDefault("session.backend", cfg.Session.Backend)
	v.SetDefault("session.redis_url", cfg.Session.RedisURL)

	v.SetDefault("assistant.timeout", cfg.Assistant.Timeout)
	v.SetDefault("assistant.openrouter.url", cfg.Assistant.OpenRouter.URL)
	v.SetDefault("assistant.openrouter.api_key", cfg.Assistant.OpenRouter.APIKey)
	v.SetDefault("assistant.openrouter.model", cfg.Assistant.OpenRouter.Model)
	v.SetDefault("assistant.openrouter.system_prompt", cfg.Assistant.OpenRouter.SystemPrompt)
	v.SetDefault("assistant.openrouter.sender", cfg.Assistant.OpenRouter.Sender)
	v.SetDefault("assistant.ollama.url", cfg.Assistant.Ollama.URL)
	v.SetDefault("assistant.ollama.model", cfg.Assistant.Ollama.Model)
	v.SetDefault("assistant.ollama.sender", cfg.Assistant.Ollama.Sender)
}

// readOrCreate reads path, writing the defaults there first when the file is missing.
// A default file that cannot be written is logged and the in-memory defaults are used.
func readOrCreate(v *viper.Viper, path string, defaults Config, logger *zerolog.Logger) error {
	err := v.ReadInConfig()
	if err == nil {
		return nil
	}
	var notFound viper.ConfigFileNotFoundError
	if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read config: %w", err)
	}

	if err := writeDefaultConfig(path, defaults); err != nil {
		if logger != nil {
			logger.Warn().Err(err).Str("path", path).Msg("config file missing and defaults could not be written")
		}
		return nil
	}
	if logger != nil {
		logger.Info().Str("path", path).Msg("created default config")
	}
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read default config: %w", err)
	}
	return nil
}

func resolveConfigPath(explicitPath string) string {
	if explicitPath != "" {
		return explicitPath
	}

	if base := os.Getenv(envConfigDefaultPath); base != "" {
		if err := os.MkdirAll(base, 0o755); err == nil {
			return filepath.Join(base, defaultConfigName)
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return defaultConfigName
	}
	return filepath.Join(cwd, defaultConfigName)
}

func writeDefaultConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	// The file may carry the moderator password and session secret.
	return os.WriteFile(path, data, 0o600)
}
