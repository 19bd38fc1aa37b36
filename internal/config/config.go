package config

import "time"

// Config represents the complete application configuration.
// Values are layered: built-in defaults, then an optional YAML config file,
// then CHATRELAY_* environment variables.
type Config struct {
	Bot       BotConfig       `mapstructure:"bot"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Provider  ProviderConfig  `mapstructure:"provider"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Store     StoreConfig     `mapstructure:"store"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Health    HealthConfig    `mapstructure:"health"`
	Debug     DebugConfig     `mapstructure:"debug"`
}

// BotConfig contains relay-facing bot settings.
type BotConfig struct {
	// Name is the display name used in the welcome message.
	Name string `mapstructure:"name"`

	// MaxMessageLength is the maximum accepted inbound message length in
	// characters. Longer messages are rejected before the rate-limit check.
	MaxMessageLength int `mapstructure:"max_message_length"`

	// SystemPrompt is sent as the system message on every completion request.
	SystemPrompt string `mapstructure:"system_prompt"`

	// MessagesFile optionally points to a YAML file overriding the built-in
	// user-facing message catalog.
	MessagesFile string `mapstructure:"messages_file"`
}

// TelegramConfig contains Bot API transport configuration.
type TelegramConfig struct {
	Token       string        `mapstructure:"token"`
	BaseURL     string        `mapstructure:"base_url"`
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
}

// ProviderConfig contains completion-provider configuration.
type ProviderConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// RateLimitConfig tunes the per-user sliding window.
type RateLimitConfig struct {
	Window      time.Duration `mapstructure:"window"`
	MaxRequests int           `mapstructure:"max_requests"`

	// SweepInterval controls how often fully expired user windows are evicted.
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// StoreConfig contains the libsql usage-audit store configuration.
type StoreConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// ServerConfig contains the ops HTTP server configuration.
type ServerConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig contains logging configuration.
// Valid levels: trace, debug, info, warn, error.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// HealthConfig contains health check configuration.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// DebugConfig contains debug configuration.
type DebugConfig struct {
	Enabled bool `mapstructure:"enabled"`
}
