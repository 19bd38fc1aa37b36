package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func newTestViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	BindEnv(v)
	return v
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(newTestViper())
	require.NoError(t, err)

	require.Equal(t, "OpenAI Assistant Bot", cfg.Bot.Name)
	require.Equal(t, 4000, cfg.Bot.MaxMessageLength)
	require.Contains(t, cfg.Bot.SystemPrompt, "helpful AI assistant")

	require.Equal(t, "https://api.telegram.org", cfg.Telegram.BaseURL)
	require.Equal(t, 50*time.Second, cfg.Telegram.PollTimeout)

	require.Equal(t, "https://api.openai.com/v1", cfg.Provider.BaseURL)
	require.Equal(t, "gpt-3.5-turbo", cfg.Provider.Model)
	require.Equal(t, 1000, cfg.Provider.MaxTokens)
	require.InDelta(t, 0.7, cfg.Provider.Temperature, 0.0001)
	require.Equal(t, time.Minute, cfg.Provider.Timeout)

	require.Equal(t, time.Minute, cfg.RateLimit.Window)
	require.Equal(t, 10, cfg.RateLimit.MaxRequests)
	require.Equal(t, 5*time.Minute, cfg.RateLimit.SweepInterval)

	require.False(t, cfg.Store.Enabled)
	require.Equal(t, "libsql", cfg.Store.Driver)

	require.True(t, cfg.Server.Enabled)
	require.Equal(t, "localhost", cfg.Server.Host)
	require.Equal(t, 8080, cfg.Server.Port)

	require.Equal(t, "info", cfg.Logging.Level)
	require.True(t, cfg.Metrics.Enabled)
	require.Equal(t, 9090, cfg.Metrics.Port)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CHATRELAY_TELEGRAM_TOKEN", "test-token")
	t.Setenv("CHATRELAY_PROVIDER_API_KEY", "test-key")
	t.Setenv("CHATRELAY_PROVIDER_MODEL", "gpt-4o-mini")
	t.Setenv("CHATRELAY_RATE_LIMIT_MAX_REQUESTS", "5")
	t.Setenv("CHATRELAY_RATE_LIMIT_WINDOW", "30s")
	t.Setenv("CHATRELAY_BOT_NAME", "Custom Bot")

	cfg, err := Load(newTestViper())
	require.NoError(t, err)

	require.Equal(t, "test-token", cfg.Telegram.Token)
	require.Equal(t, "test-key", cfg.Provider.APIKey)
	require.Equal(t, "gpt-4o-mini", cfg.Provider.Model)
	require.Equal(t, 5, cfg.RateLimit.MaxRequests)
	require.Equal(t, 30*time.Second, cfg.RateLimit.Window)
	require.Equal(t, "Custom Bot", cfg.Bot.Name)
}

func TestValidateRequiresCredentials(t *testing.T) {
	cfg, err := Load(newTestViper())
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "telegram.token")

	cfg.Telegram.Token = "token"
	err = cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "provider.api_key")

	cfg.Provider.APIKey = "key"
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadLimits(t *testing.T) {
	cfg, err := Load(newTestViper())
	require.NoError(t, err)
	cfg.Telegram.Token = "token"
	cfg.Provider.APIKey = "key"

	cfg.RateLimit.MaxRequests = 0
	require.Error(t, cfg.Validate())
	cfg.RateLimit.MaxRequests = 10

	cfg.RateLimit.Window = 0
	require.Error(t, cfg.Validate())
	cfg.RateLimit.Window = time.Minute

	cfg.Bot.MaxMessageLength = -1
	require.Error(t, cfg.Validate())
}

func TestValidateNilConfig(t *testing.T) {
	var cfg *Config
	require.Error(t, cfg.Validate())
}

func TestGetConfigAfterLoad(t *testing.T) {
	cfg, err := Load(newTestViper())
	require.NoError(t, err)
	require.Same(t, cfg, GetConfig())
}
