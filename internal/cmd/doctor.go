package cmd

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/chatrelay/chatrelay/internal/config"
	"github.com/chatrelay/chatrelay/internal/observability"
	"github.com/chatrelay/chatrelay/internal/relay"
	"github.com/chatrelay/chatrelay/internal/telegram"
)

var doctorLive bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check relay configuration and connectivity",
	Long: `Validate the configuration and report each setting the relay will
run with. With --live, also verify the Telegram token against the API.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := observability.CLILogger
		failed := false

		cfg, err := config.Load(viper.GetViper())
		if err != nil {
			logger.Error("❌ Configuration failed to load", zap.Error(err))
			return err
		}

		if err := cfg.Validate(); err != nil {
			logger.Error("❌ Configuration invalid", zap.Error(err))
			failed = true
		} else {
			logger.Info("✅ Configuration valid")
		}

		logger.Info(fmt.Sprintf("  Bot name:         %s", cfg.Bot.Name))
		logger.Info(fmt.Sprintf("  Model:            %s", cfg.Provider.Model))
		logger.Info(fmt.Sprintf("  Provider URL:     %s", cfg.Provider.BaseURL))
		logger.Info(fmt.Sprintf("  Rate limit:       %d per %s", cfg.RateLimit.MaxRequests, cfg.RateLimit.Window))
		logger.Info(fmt.Sprintf("  Max msg length:   %d characters", cfg.Bot.MaxMessageLength))
		logger.Info(fmt.Sprintf("  Store enabled:    %t", cfg.Store.Enabled))
		logger.Info(fmt.Sprintf("  Ops server:       %t (%s:%d)", cfg.Server.Enabled, cfg.Server.Host, cfg.Server.Port))

		if _, err := relay.LoadMessages(cfg.Bot.MessagesFile); err != nil {
			logger.Error("❌ Message catalog failed to load", zap.Error(err))
			failed = true
		} else if cfg.Bot.MessagesFile != "" {
			logger.Info(fmt.Sprintf("✅ Message catalog: %s", cfg.Bot.MessagesFile))
		} else {
			logger.Info("✅ Message catalog: built-in defaults")
		}

		if doctorLive {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			tg := telegram.NewClient(cfg.Telegram.BaseURL, cfg.Telegram.Token)
			me, err := tg.GetMe(ctx)
			if err != nil {
				logger.Error("❌ Telegram token check failed", zap.Error(err))
				failed = true
			} else {
				logger.Info(fmt.Sprintf("✅ Telegram token valid (bot @%s)", me.Username))
			}

			if err := probeProvider(ctx, cfg.Provider.BaseURL, cfg.Provider.APIKey); err != nil {
				logger.Error("❌ Provider check failed", zap.Error(err))
				failed = true
			} else {
				logger.Info(fmt.Sprintf("✅ Provider reachable (%s)", cfg.Provider.BaseURL))
			}
		}

		if failed {
			return fmt.Errorf("doctor found problems")
		}

		logger.Info("")
		logger.Info("✅ All checks passed")
		return nil
	},
}

// probeProvider lists models on the completion endpoint, the cheapest
// authenticated call an OpenAI-compatible API offers.
func probeProvider(ctx context.Context, baseURL, apiKey string) error {
	url := strings.TrimRight(baseURL, "/") + "/models"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build provider request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("provider unreachable: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("provider returned status %d", resp.StatusCode)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(doctorCmd)

	doctorCmd.Flags().BoolVar(&doctorLive, "live", false, "verify Telegram connectivity")
}
