// Package config provides centralized configuration management for chatrelay.
// Defaults are registered on a viper instance, optionally overridden by a YAML
// config file and CHATRELAY_* environment variables, then decoded into the
// typed Config struct.
package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for all environment variable overrides,
// e.g. CHATRELAY_TELEGRAM_TOKEN maps to telegram.token.
const EnvPrefix = "CHATRELAY"

var (
	appConfig *Config
	configMu  sync.RWMutex
)

// SetDefaults registers default values on the provided viper instance.
func SetDefaults(v *viper.Viper) {
	// Bot defaults
	v.SetDefault("bot.name", "OpenAI Assistant Bot")
	v.SetDefault("bot.max_message_length", 4000)
	v.SetDefault("bot.system_prompt", "You are a helpful AI assistant. Respond in a friendly, helpful, and informative manner. Keep responses concise but comprehensive.")
	v.SetDefault("bot.messages_file", "")

	// Telegram transport defaults
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.base_url", "https://api.telegram.org")
	v.SetDefault("telegram.poll_timeout", "50s")

	// Completion provider defaults
	v.SetDefault("provider.base_url", "https://api.openai.com/v1")
	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.model", "gpt-3.5-turbo")
	v.SetDefault("provider.max_tokens", 1000)
	v.SetDefault("provider.temperature", 0.7)
	v.SetDefault("provider.timeout", "60s")

	// Rate limit defaults: 10 requests per rolling minute per user
	v.SetDefault("rate_limit.window", "60s")
	v.SetDefault("rate_limit.max_requests", 10)
	v.SetDefault("rate_limit.sweep_interval", "5m")

	// Store defaults
	v.SetDefault("store.enabled", false)
	v.SetDefault("store.driver", "libsql")
	v.SetDefault("store.path", "./chatrelay.db")
	v.SetDefault("store.url", "")
	v.SetDefault("store.auth_token", "")

	// Ops server defaults
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", "10s")

	// Logging defaults
	v.SetDefault("logging.level", "info")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)

	// Health check defaults
	v.SetDefault("health.enabled", true)

	// Debug defaults
	v.SetDefault("debug.enabled", false)
}

// BindEnv wires environment variable overrides on the provided viper instance.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load decodes the viper settings into a typed Config and stores it as the
// current application configuration. Safe to call multiple times (reload).
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToFloat64HookFunc(),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	// AutomaticEnv does not surface env-only keys through AllSettings, so
	// resolve each known key through viper.Get before decoding.
	if err := decoder.Decode(settingsMap(v)); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	setConfig(cfg)
	return cfg, nil
}

// Validate checks the startup invariants required to serve traffic.
// Missing transport or provider credentials is a fatal condition.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("configuration not loaded")
	}
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return errors.New("telegram.token is required (set CHATRELAY_TELEGRAM_TOKEN)")
	}
	if strings.TrimSpace(c.Provider.APIKey) == "" {
		return errors.New("provider.api_key is required (set CHATRELAY_PROVIDER_API_KEY)")
	}
	if c.RateLimit.MaxRequests <= 0 {
		return fmt.Errorf("rate_limit.max_requests must be positive, got %d", c.RateLimit.MaxRequests)
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate_limit.window must be positive, got %s", c.RateLimit.Window)
	}
	if c.Bot.MaxMessageLength <= 0 {
		return fmt.Errorf("bot.max_message_length must be positive, got %d", c.Bot.MaxMessageLength)
	}
	return nil
}

// GetConfig returns the current application configuration (thread-safe).
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

// settingsMap builds a nested map of every known config key, resolving each
// through viper so env overrides take effect even without a config file.
func settingsMap(v *viper.Viper) map[string]any {
	keys := []string{
		"bot.name", "bot.max_message_length", "bot.system_prompt", "bot.messages_file",
		"telegram.token", "telegram.base_url", "telegram.poll_timeout",
		"provider.base_url", "provider.api_key", "provider.model",
		"provider.max_tokens", "provider.temperature", "provider.timeout",
		"rate_limit.window", "rate_limit.max_requests", "rate_limit.sweep_interval",
		"store.enabled", "store.driver", "store.path", "store.url", "store.auth_token",
		"server.enabled", "server.host", "server.port", "server.shutdown_timeout",
		"logging.level",
		"metrics.enabled", "metrics.port",
		"health.enabled",
		"debug.enabled",
	}

	out := map[string]any{}
	for _, key := range keys {
		parts := strings.Split(key, ".")
		node := out
		for _, part := range parts[:len(parts)-1] {
			child, ok := node[part].(map[string]any)
			if !ok {
				child = map[string]any{}
				node[part] = child
			}
			node = child
		}
		node[parts[len(parts)-1]] = v.Get(key)
	}
	return out
}
