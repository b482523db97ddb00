package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rickgao/t212-data/internal/api"
	"github.com/rickgao/t212-data/internal/auth"
	"github.com/rickgao/t212-data/internal/config"
	"github.com/rickgao/t212-data/internal/database"
	"github.com/rickgao/t212-data/internal/ingest"
	"github.com/rickgao/t212-data/internal/ratelimit"
	"github.com/rickgao/t212-data/internal/store"
	"github.com/rickgao/t212-data/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/ingest.local.yaml", "path to config file")
	mode := flag.String("mode", "full", "run mode: full, incremental, or loop")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting ingest",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
		"mode", *mode,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"environment", cfg.API.Environment,
		"api_url", cfg.API.BaseURL,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Connect to database
	logger.Info("connecting to database",
		"host", cfg.Database.Postgres.Host,
		"port", cfg.Database.Postgres.Port,
		"database", cfg.Database.Postgres.Name,
	)

	pool, err := database.Connect(ctx, cfg.Database.Postgres)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger.Info("database connected")

	// Create API client
	creds, err := auth.NewCredentials(cfg.API.APIKey, cfg.API.APISecret)
	if err != nil {
		logger.Error("invalid credentials", "error", err)
		os.Exit(1)
	}

	limiter := ratelimit.New(ratelimit.DefaultConfig(), logger)
	apiClient := api.NewClient(
		cfg.API.BaseURL,
		creds,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, 2*time.Second),
		api.WithRateLimiter(limiter),
	)

	repo := store.New(pool, logger)

	svcCfg := ingest.Config{
		PageLimit:         cfg.Ingest.PageLimit,
		MaxPages:          cfg.Ingest.MaxPages,
		RateLimitCooldown: cfg.Ingest.RateLimitCooldown,
		HistoryPagePause:  cfg.Ingest.HistoryPagePause,
	}
	service := ingest.New(svcCfg, apiClient, repo, logger)

	// Serve metrics and health alongside any run mode
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, promhttp.Handler())
		mux.Handle("/health", healthHandler(pool))

		metricsServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler: mux,
		}
		go func() {
			logger.Info("starting metrics server", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
			if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
				logger.Error("metrics server error", "error", err)
			}
		}()
	}

	exitCode := 0
	switch *mode {
	case "full":
		summary, err := service.RunFullSnapshot(ctx)
		if err != nil {
			logger.Error("full snapshot run failed", "error", err)
			exitCode = 1
			break
		}
		logger.Info("full snapshot complete",
			"account_id", summary.AccountID,
			"order_history_rows", summary.OrderHistoryRows,
			"dividend_rows", summary.DividendRows,
			"transaction_rows", summary.TransactionRows,
			"instrument_rows", summary.InstrumentRows,
			"failed_phases", summary.PhaseFailures,
		)
		if len(summary.PhaseFailures) > 0 {
			exitCode = 2
		}

	case "incremental":
		summary, err := service.RunIncremental(ctx)
		if err != nil {
			logger.Error("incremental run failed", "error", err)
			exitCode = 1
			break
		}
		logger.Info("incremental run complete",
			"account_id", summary.AccountID,
			"new_transactions", summary.NewTransactionRows,
		)

	case "loop":
		runner := ingest.NewRunner(cfg.Ingest.Interval, service, logger)
		if err := runner.Start(ctx); err != nil {
			logger.Error("failed to start runner", "error", err)
			os.Exit(1)
		}
		logger.Info("ingest running", "interval", cfg.Ingest.Interval)

		// Wait for shutdown
		<-ctx.Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := runner.Stop(shutdownCtx); err != nil {
			logger.Error("runner shutdown incomplete", "error", err)
		}
		shutdownCancel()

	default:
		logger.Error("unknown mode", "mode", *mode)
		exitCode = 2
	}

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		metricsServer.Shutdown(shutdownCtx)
		shutdownCancel()
	}

	logger.Info("ingest stopped")
	os.Exit(exitCode)
}

// healthHandler reports database connectivity.
func healthHandler(pool *pgxpool.Pool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string            `json:"status"`
			Components map[string]string `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]string),
		}

		if err := pool.Ping(ctx); err != nil {
			health.Status = "unhealthy"
			health.Components["postgres"] = "disconnected: " + err.Error()
		} else {
			health.Components["postgres"] = "connected"
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})
}
