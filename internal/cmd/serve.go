package cmd

import (
	"context"
	"net/http"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/quizai/quizai/internal/config"
	errwrap "github.com/quizai/quizai/internal/errors"
	"github.com/quizai/quizai/internal/metrics"
	"github.com/quizai/quizai/internal/observability"
	"github.com/quizai/quizai/internal/server"
	"github.com/quizai/quizai/internal/server/handlers"
)

// telemetryHealthChecker ensures telemetry system and exporter are available
type telemetryHealthChecker struct{}

func (telemetryHealthChecker) CheckHealth(ctx context.Context) error {
	if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
		return errwrap.NewInternalError("telemetry system not initialized")
	}
	return nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the HTTP API server with graceful shutdown support.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Config file reload (logged; restart to apply store or auth changes)

On shutdown the server stops accepting requests, waits for queued
notification emails, closes the store, and flushes logs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := config.Load(ctx)
		if err != nil {
			return errwrap.WrapInternal(ctx, err, "config load failed")
		}
		if err := cfg.Validate(); err != nil {
			return errwrap.NewConfigInvalidError(err.Error())
		}

		observability.InitServerLogger(config.AppName, cfg.Logging, config.AppName)
		logger := observability.ServerLogger

		if err := observability.InitMetrics(config.AppName, cfg.Metrics); err != nil {
			logger.Error("Failed to initialize metrics", zap.Error(err))
			return errwrap.WrapInternal(ctx, err, "metrics initialization failed")
		}

		app, err := buildApplication(ctx, cfg, logger)
		if err != nil {
			logger.Error("Failed to initialize services", zap.Error(err))
			return errwrap.WrapInternal(ctx, err, "service initialization failed")
		}

		logger.Info("Initializing server",
			zap.String("service", config.AppName),
			zap.String("version", versionInfo.Version),
			zap.String("store_driver", app.Backend.Driver()),
			zap.String("ai_provider", cfg.AILink.Provider),
			zap.String("notify_provider", cfg.Notify.Provider),
			zap.String("host", cfg.Server.Host),
			zap.Int("port", cfg.Server.Port),
			zap.Bool("metrics_enabled", cfg.Metrics.Enabled),
			zap.Int("metrics_port", observability.GetMetricsPort()))

		// Initialize health manager
		handlers.SetAppName(config.AppName)
		handlers.SetBackendInfo(handlers.BackendInfo{
			Store:    app.Backend.Driver(),
			AI:       cfg.AILink.Provider,
			AIModel:  cfg.AILink.Model,
			Notifier: app.Dispatcher.Sender.Name(),
		})
		handlers.InitHealthManager(versionInfo.Version)
		hm := handlers.GetHealthManager()
		hm.RegisterChecker("store", handlers.PingChecker(app.Backend.Ping))
		if cfg.Metrics.Enabled {
			hm.RegisterOptionalChecker("telemetry", telemetryHealthChecker{})
		}

		srv := server.New(cfg.Server,
			server.WithAPI(app.API()),
			server.WithTokenVerifier(app.TokenVerifier()))

		shutdownTimeout := cfg.Server.ShutdownTimeout
		if shutdownTimeout == 0 {
			shutdownTimeout = 10 * time.Second
		}

		// Register graceful shutdown handlers (LIFO order - last registered, first executed)
		// Handler 1: Flush logger (executed last)
		signals.OnShutdown(func(ctx context.Context) error {
			logger.Info("Flushing logger...")
			if err := logger.Sync(); err != nil {
				// Sync errors are often benign (stdout/stderr already closed)
				logger.Warn("Logger sync returned error (may be benign)", zap.Error(err))
			}
			return nil
		})

		// Handler 2: Drain notifications, close the store and stop the exporter
		signals.OnShutdown(func(ctx context.Context) error {
			logger.Info("Waiting for queued notifications...")
			drainCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()

			if err := app.Close(drainCtx); err != nil {
				logger.Warn("Shutdown drain incomplete", zap.Error(err))
			}
			if err := observability.StopMetrics(); err != nil {
				logger.Warn("Metrics exporter did not stop cleanly", zap.Error(err))
			}
			return nil
		})

		// Handler 3: Shutdown HTTP server (executed first)
		signals.OnShutdown(func(ctx context.Context) error {
			logger.Info("Shutting down HTTP server...")
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				return errwrap.WrapInternal(ctx, err, "server shutdown failed")
			}

			logger.Info("HTTP server stopped gracefully")
			return nil
		})

		// Register config reload handler (SIGHUP)
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
				return errwrap.NewConfigInvalidError("config reload failed: " + err.Error())
			}

			reloaded, err := config.Load(ctx)
			if err != nil {
				return errwrap.NewConfigInvalidError("config reload failed: " + err.Error())
			}
			if err := reloaded.Validate(); err != nil {
				logger.Warn("Reloaded config is invalid; keeping running services", zap.Error(err))
				return nil
			}

			logger.Info("Configuration reloaded successfully",
				zap.String("file", viper.ConfigFileUsed()))
			return nil
		})

		// Enable double-tap force quit (Ctrl+C within 2 seconds)
		if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
			Window:  2 * time.Second,
			Message: "Press Ctrl+C again within 2 seconds to force quit",
		}); err != nil {
			logger.Warn("Failed to enable double-tap force quit", zap.Error(err))
		}

		startedAt := time.Now()
		metrics.SetServerStartTime(startedAt.Unix())

		errChan := make(chan error, 1)
		go func() {
			logger.Info("Starting HTTP server...", zap.String("addr", srv.Addr()))
			if err := srv.Start(); err != nil && err != http.ErrServerClosed {
				errChan <- err
			}
		}()

		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					metrics.SetServerUptime(int64(time.Since(startedAt).Seconds()))
				}
			}
		}()

		// Start signal listener in background
		go func() {
			if err := signals.Listen(ctx); err != nil {
				logger.Error("Signal handler error", zap.Error(err))
				errChan <- err
			}
		}()

		// Wait for error or shutdown completion
		if err := <-errChan; err != nil {
			_ = app.Close(context.Background())
			return errwrap.WrapInternal(ctx, err, "server error")
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}
