package cmd

import (
	"context"
	"net/http"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/iocgate/iocgate/internal/analyzer"
	"github.com/iocgate/iocgate/internal/core"
	"github.com/iocgate/iocgate/internal/core/engine"
	"github.com/iocgate/iocgate/internal/core/quota"
	errwrap "github.com/iocgate/iocgate/internal/errors"
	"github.com/iocgate/iocgate/internal/metrics"
	"github.com/iocgate/iocgate/internal/observability"
	"github.com/iocgate/iocgate/internal/server"
	"github.com/iocgate/iocgate/internal/server/handlers"
)

var (
	serverPort int
	serverHost string
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
	Short: "Start the HTTP admission gate",
	Long: `Start the HTTP server with graceful shutdown support.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Config reload (placeholder - restart recommended)

The server will cleanly shut down the HTTP server, stop the retention
sweeper, close the store, and flush logs on shutdown.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logLevel := viper.GetString("logging.level")
		observability.InitServerLogger(appName, logLevel)

		metricsPort := viper.GetInt("metrics.port")
		if metricsPort == 0 {
			metricsPort = 9090
		}

		if err := observability.InitMetrics(appName, metricsPort); err != nil {
			observability.ServerLogger.Error("Failed to initialize metrics",
				zap.Error(err))
			return errwrap.WrapInternal(cmd.Context(), err, "metrics initialization failed")
		}

		db, cfg, err := openStore(cmd.Context())
		if err != nil {
			return errwrap.WrapDatabaseError(cmd.Context(), err, "store initialization failed")
		}

		limits := core.QuotaLimits{
			PerClientDaily: cfg.Quota.PerClientDaily,
			GlobalDaily:    cfg.Quota.GlobalDaily,
			GlobalMonthly:  cfg.Quota.GlobalMonthly,
		}

		var backend engine.Analyzer
		httpAnalyzer := &analyzer.HTTPAnalyzer{
			Endpoint: cfg.Analyzer.Endpoint,
			APIKey:   cfg.Analyzer.APIKey,
			Timeout:  cfg.Analyzer.Timeout,
		}
		if httpAnalyzer.Available() {
			backend = httpAnalyzer
		} else {
			observability.ServerLogger.Warn("No analyzer endpoint configured, using built-in static analyzer")
			backend = &analyzer.StaticAnalyzer{}
		}

		policy := quota.New(db, limits)

		gate := &engine.Gate{
			Counters: db,
			Cache:    db,
			Policy:   policy,
			Analyzer: backend,
			Limits:   limits,
			CacheTTL: cfg.Cache.TTL,
			OnStoreError: func(op string, err error) {
				metrics.RecordStoreWriteFailure(op)
				observability.ServerLogger.Warn("Best-effort store write failed",
					zap.String("op", op),
					zap.Error(err))
			},
			OnAnalyzerCall: func(err error, elapsed time.Duration) {
				metrics.RecordAnalyzerCall(err == nil, elapsed)
			},
		}

		sweeper := &engine.Sweeper{
			Store:       db,
			HorizonDays: cfg.Retention.HorizonDays,
			Interval:    cfg.Retention.SweepInterval,
			OnSweep: func(report engine.SweepReport, err error) {
				if err != nil {
					// Non-fatal: the store grows until the next successful pass.
					metrics.RecordSweep(false, 0, 0)
					observability.ServerLogger.Warn("Retention sweep failed",
						zap.Error(err))
					return
				}
				metrics.RecordSweep(true, report.CacheRows, report.CounterRows)
				observability.ServerLogger.Info("Retention sweep completed",
					zap.Int64("cache_rows", report.CacheRows),
					zap.Int64("counter_rows", report.CounterRows),
					zap.Duration("elapsed", report.Elapsed))
			},
		}

		observability.ServerLogger.Info("Initializing server",
			zap.String("service", appName),
			zap.String("version", versionInfo.Version),
			zap.String("host", serverHost),
			zap.Int("port", serverPort),
			zap.Int("metrics_port", metricsPort),
			zap.String("store", db.Driver()),
			zap.Bool("analyzer_remote", httpAnalyzer.Available()),
			zap.Int("per_client_daily", limits.PerClientDaily),
			zap.Int("global_daily", limits.GlobalDaily),
			zap.Int("global_monthly", limits.GlobalMonthly))

		// Initialize health manager
		handlers.InitHealthManager(versionInfo.Version)
		hm := handlers.GetHealthManager()
		hm.RegisterChecker("store", db)
		hm.RegisterChecker("telemetry", telemetryHealthChecker{})

		srv := server.New(serverHost, serverPort, server.Deps{
			Gate:     gate,
			Quota:    policy,
			Analyzer: backend,
			Limits:   limits,
			CacheTTL: cfg.Cache.TTL,
		})

		handlers.SetVersionInfo(versionInfo.Version, versionInfo.Commit, versionInfo.BuildDate)
		metrics.SetServerStartTime(time.Now().Unix())

		// Get shutdown timeout from config
		shutdownTimeout := cfg.Server.ShutdownTimeout
		if shutdownTimeout == 0 {
			shutdownTimeout = 10 * time.Second
		}

		sweepCtx, stopSweeper := context.WithCancel(context.Background())
		go sweeper.Run(sweepCtx)

		// Register graceful shutdown handlers (LIFO order - last registered, first executed)
		// Handler 1: Flush logger (executed last)
		signals.OnShutdown(func(ctx context.Context) error {
			observability.ServerLogger.Info("Flushing logger...")
			if err := observability.ServerLogger.Sync(); err != nil {
				// Sync errors are often benign (stdout/stderr already closed)
				observability.ServerLogger.Warn("Logger sync returned error (may be benign)",
					zap.Error(err))
			}
			return nil
		})

		// Handler 2: Close the store
		signals.OnShutdown(func(ctx context.Context) error {
			observability.ServerLogger.Info("Closing store...")
			stopSweeper()
			return db.Close()
		})

		// Handler 3: Shutdown HTTP server (executed first)
		signals.OnShutdown(func(ctx context.Context) error {
			observability.ServerLogger.Info("Shutting down HTTP server...")
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				return errwrap.WrapInternal(ctx, err, "server shutdown failed")
			}

			observability.ServerLogger.Info("HTTP server stopped gracefully")
			return nil
		})

		// Register config reload handler (SIGHUP)
		signals.OnReload(func(ctx context.Context) error {
			observability.ServerLogger.Info("Received SIGHUP: attempting config reload")

			if err := viper.ReadInConfig(); err != nil {
				if _, ok := err.(viper.ConfigFileNotFoundError); ok {
					observability.ServerLogger.Info("No config file found - using defaults and environment variables")
					return nil
				}
				observability.ServerLogger.Error("Failed to reload config file",
					zap.String("file", viper.ConfigFileUsed()),
					zap.Error(err))
				return errwrap.WrapConfigInvalid(ctx, err, "config reload failed")
			}

			observability.ServerLogger.Info("Configuration reloaded successfully",
				zap.String("file", viper.ConfigFileUsed()))

			// Quota ceilings and TTLs are captured at startup; a restart is
			// required for them to take effect.
			return nil
		})

		// Enable double-tap force quit (Ctrl+C within 2 seconds)
		if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
			Window:  2 * time.Second,
			Message: "Press Ctrl+C again within 2 seconds to force quit",
		}); err != nil {
			observability.ServerLogger.Warn("Failed to enable double-tap force quit",
				zap.Error(err))
		}

		// Start server in background goroutine
		errChan := make(chan error, 1)
		go func() {
			observability.ServerLogger.Info("Starting HTTP server...",
				zap.String("host", serverHost),
				zap.Int("port", serverPort))
			if err := srv.Start(); err != nil && err != http.ErrServerClosed {
				errChan <- err
			}
		}()

		// Start signal listener in background
		go func() {
			if err := signals.Listen(cmd.Context()); err != nil {
				observability.ServerLogger.Error("Signal handler error", zap.Error(err))
				errChan <- err
			}
		}()

		// Wait for error or shutdown completion
		if err := <-errChan; err != nil {
			return errwrap.WrapInternal(cmd.Context(), err, "server error")
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "localhost", "server host")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "server port")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}
