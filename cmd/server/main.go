package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/stagepipe/internal/config"
	"github.com/JonMunkholm/stagepipe/internal/database"
	"github.com/JonMunkholm/stagepipe/internal/logging"
	"github.com/JonMunkholm/stagepipe/internal/pipeline"
	"github.com/JonMunkholm/stagepipe/internal/web"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_max_conns", cfg.Database.MaxConns,
		"batch_size", cfg.Pipeline.BatchSize,
		"run_interval", cfg.Pipeline.RunInterval,
		"api_keys", len(cfg.Server.APIKeys),
	)

	connectCtx, cancelConnect := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout)
	pool, err := database.Connect(connectCtx, cfg.Database.ConnString(), database.PoolSettings(cfg.Database))
	cancelConnect()
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	slog.Info("connected to database", "name", pool.Config().ConnConfig.Database)

	acc := database.NewAccessor(pool)
	if err := acc.WithConn(context.Background(), func(q *database.Queries) error {
		return q.CreateTables(context.Background())
	}); err != nil {
		slog.Error("failed to create tables", "error", err)
		os.Exit(1)
	}

	opts, err := pipeline.OptionsFromConfig(cfg.Pipeline)
	if err != nil {
		slog.Error("invalid pipeline configuration", "error", err)
		os.Exit(1)
	}
	service := pipeline.NewService(acc, opts)

	server := web.NewServer(service, cfg.Server, cfg.Pipeline.OpTimeout)

	// Cancellable context for background jobs
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	go service.StartScheduler(jobCtx, cfg.Pipeline.RunInterval)

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(cfg.Server.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		cancelJobs()
		os.Exit(1)
	}
	<-done
	slog.Info("server stopped")
}
