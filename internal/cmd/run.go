package cmd

import (
	"context"
	"net/http"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/chatrelay/chatrelay/internal/ailink"
	"github.com/chatrelay/chatrelay/internal/ailink/driver/openai"
	"github.com/chatrelay/chatrelay/internal/config"
	apperrors "github.com/chatrelay/chatrelay/internal/errors"
	"github.com/chatrelay/chatrelay/internal/metrics"
	"github.com/chatrelay/chatrelay/internal/observability"
	"github.com/chatrelay/chatrelay/internal/relay"
	"github.com/chatrelay/chatrelay/internal/server"
	"github.com/chatrelay/chatrelay/internal/server/handlers"
	"github.com/chatrelay/chatrelay/internal/store"
	"github.com/chatrelay/chatrelay/internal/telegram"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the Telegram relay",
	Long: `Start the relay: long-poll Telegram for messages, rate limit per
user, request completions from the configured provider, and reply.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Config reload (token and provider changes need a restart)

Shutdown waits for in-flight messages before exiting.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(viper.GetViper())
		if err != nil {
			ExitWithCode(observability.CLILogger, foundry.ExitConfigInvalid, "Failed to load configuration", err)
		}
		if err := cfg.Validate(); err != nil {
			ExitWithCode(observability.CLILogger, foundry.ExitConfigInvalid, "Invalid configuration", err)
		}

		observability.InitServerLogger(appName, cfg.Logging.Level)
		logger := observability.ServerLogger

		if cfg.Metrics.Enabled {
			if err := observability.InitMetrics(appName, cfg.Metrics.Port); err != nil {
				ExitWithCode(logger, foundry.ExitFailure, "Failed to initialize metrics", err)
			}
		}

		messages, err := relay.LoadMessages(cfg.Bot.MessagesFile)
		if err != nil {
			ExitWithCode(logger, foundry.ExitConfigInvalid, "Failed to load message catalog", err)
		}
		messages = messages.Render(relay.MessageVars{
			BotName:     cfg.Bot.Name,
			MaxRequests: cfg.RateLimit.MaxRequests,
			MaxLength:   cfg.Bot.MaxMessageLength,
		})

		limiter := relay.NewRateLimiter(cfg.RateLimit.Window, cfg.RateLimit.MaxRequests)

		completer := &ailink.Service{
			Driver:       openai.NewClient(cfg.Provider.BaseURL, cfg.Provider.APIKey),
			Model:        cfg.Provider.Model,
			SystemPrompt: cfg.Bot.SystemPrompt,
			MaxTokens:    cfg.Provider.MaxTokens,
			Temperature:  cfg.Provider.Temperature,
			Timeout:      cfg.Provider.Timeout,
		}

		tg := telegram.NewClient(cfg.Telegram.BaseURL, cfg.Telegram.Token)

		// fail fast on a bad token
		me, err := tg.GetMe(cmd.Context())
		if err != nil {
			ExitWithCode(logger, foundry.ExitExternalServiceUnavailable, "Telegram token validation failed", err)
		}
		logger.Info("Telegram bot authorized",
			zap.String("username", me.Username),
			zap.Int64("bot_id", me.ID))

		var usageStore *store.Store
		var recorder relay.Recorder
		if cfg.Store.Enabled {
			usageStore, err = store.Open(cmd.Context(), cfg.Store)
			if err != nil {
				ExitWithCode(logger, foundry.ExitConfigInvalid, "Failed to open usage store", err)
			}
			recorder = usageStore
			logger.Info("Usage store opened", zap.String("driver", usageStore.Driver()))
		}

		dispatcher := &relay.Dispatcher{
			Transport: tg,
			Completer: completer,
			Limiter:   limiter,
			Validator: &relay.Validator{MaxLength: cfg.Bot.MaxMessageLength},
			Messages:  messages,
			Recorder:  recorder,
		}

		poller := &telegram.Poller{
			Client:      tg,
			Handler:     dispatcher,
			PollTimeout: cfg.Telegram.PollTimeout,
		}

		handlers.SetVersionInfo(appName, versionInfo.Version, versionInfo.Commit, versionInfo.BuildDate)
		handlers.InitHealthManager(versionInfo.Version)
		hm := handlers.GetHealthManager()
		hm.RegisterChecker("poller", handlers.HealthCheckerFunc(func(ctx context.Context) error {
			if !poller.Healthy() {
				return apperrors.NewServiceUnavailableError("telegram poll loop unhealthy")
			}
			return nil
		}))
		if usageStore != nil {
			hm.RegisterChecker("store", handlers.HealthCheckerFunc(func(ctx context.Context) error {
				return usageStore.DB.PingContext(ctx)
			}))
		}
		if cfg.Metrics.Enabled {
			hm.RegisterChecker("telemetry", handlers.HealthCheckerFunc(func(ctx context.Context) error {
				if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
					return apperrors.NewInternalError("telemetry system not initialized")
				}
				return nil
			}))
		}

		runCtx, cancelRun := context.WithCancel(cmd.Context())
		defer cancelRun()

		// prune idle users so the limiter map stays bounded
		go func() {
			ticker := time.NewTicker(cfg.RateLimit.SweepInterval)
			defer ticker.Stop()
			for {
				select {
				case <-runCtx.Done():
					return
				case <-ticker.C:
					removed := limiter.Sweep()
					metrics.SetTrackedUsers(limiter.TrackedUsers())
					if removed > 0 {
						logger.Debug("Swept idle rate limit entries", zap.Int("removed", removed))
					}
				}
			}
		}()

		var srv *server.Server
		if cfg.Server.Enabled {
			srv = server.New(cfg.Server.Host, cfg.Server.Port)
		}

		shutdownTimeout := cfg.Server.ShutdownTimeout
		if shutdownTimeout == 0 {
			shutdownTimeout = 10 * time.Second
		}

		// Shutdown handlers run LIFO: stop polling first, then the ops
		// server and store, flush logs last.
		signals.OnShutdown(func(ctx context.Context) error {
			logger.Info("Flushing logger...")
			if err := logger.Sync(); err != nil {
				logger.Warn("Logger sync returned error (may be benign)", zap.Error(err))
			}
			return nil
		})

		if usageStore != nil {
			signals.OnShutdown(func(ctx context.Context) error {
				logger.Info("Closing usage store...")
				return usageStore.Close()
			})
		}

		if srv != nil {
			signals.OnShutdown(func(ctx context.Context) error {
				logger.Info("Shutting down ops server...")
				shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
		}

		signals.OnShutdown(func(ctx context.Context) error {
			logger.Info("Stopping Telegram poller...")
			cancelRun()
			return nil
		})

		signals.OnReload(func(ctx context.Context) error {
			logger.Info("Received SIGHUP: attempting config reload")

			if err := viper.ReadInConfig(); err != nil {
				if _, ok := err.(viper.ConfigFileNotFoundError); ok {
					logger.Info("No config file found - using defaults and environment variables")
					return nil
				}
				logger.Error("Failed to reload config file",
					zap.String("file", viper.ConfigFileUsed()),
					zap.Error(err))
				return apperrors.NewConfigInvalidError("config reload failed")
			}

			logger.Info("Configuration reloaded successfully",
				zap.String("file", viper.ConfigFileUsed()))
			logger.Warn("Token, provider and rate limit changes take effect on restart")
			return nil
		})

		if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
			Window:  2 * time.Second,
			Message: "Press Ctrl+C again within 2 seconds to force quit",
		}); err != nil {
			logger.Warn("Failed to enable double-tap force quit", zap.Error(err))
		}

		errChan := make(chan error, 1)

		if srv != nil {
			go func() {
				if err := srv.Start(); err != nil && err != http.ErrServerClosed {
					errChan <- err
				}
			}()
		}

		go func() {
			if err := poller.Run(runCtx); err != nil && runCtx.Err() == nil {
				errChan <- err
			}
		}()

		go func() {
			if err := signals.Listen(cmd.Context()); err != nil {
				logger.Error("Signal handler error", zap.Error(err))
				errChan <- err
			}
		}()

		logger.Info("Relay started",
			zap.String("bot", me.Username),
			zap.String("model", cfg.Provider.Model),
			zap.Duration("rate_limit_window", cfg.RateLimit.Window),
			zap.Int("rate_limit_max", cfg.RateLimit.MaxRequests),
			zap.Int("max_message_length", cfg.Bot.MaxMessageLength),
			zap.Duration("poll_timeout", cfg.Telegram.PollTimeout))

		if err := <-errChan; err != nil {
			ExitWithCode(logger, foundry.ExitFailure, "Relay terminated", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
