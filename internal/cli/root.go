// Package cli holds the cobra command trees behind the etl, seed and backup
// binaries.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/stagepipe/internal/config"
	"github.com/JonMunkholm/stagepipe/internal/database"
	"github.com/JonMunkholm/stagepipe/internal/logging"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// ExitCode is the process status a Run function returns.
type ExitCode int

const (
	exitCodeSuccess = 0
	exitCodeError   = 1
)

// execute runs root with a context cancelled on SIGINT/SIGTERM.
func execute(root *cobra.Command) ExitCode {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root.SilenceUsage = true
	root.SilenceErrors = true
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return exitCodeError
	}
	return exitCodeSuccess
}

// addGlobalFlags registers the flags every binary shares.
func addGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().BoolP("verbose", "v", false, "set debug logging level")
	cmd.PersistentFlags().String("log-format", "pretty", "log format: pretty, text or json")
}

// loadConfig reads .env and the environment, then installs the logger
// selected by the global flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	_ = godotenv.Overload()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		return nil, fmt.Errorf("failed to get verbose flag: %w", err)
	}
	format, err := cmd.Flags().GetString("log-format")
	if err != nil {
		return nil, fmt.Errorf("failed to get log-format flag: %w", err)
	}

	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	slog.SetDefault(logging.New(os.Stderr, level, format))
	return cfg, nil
}

// connect opens the pool and makes sure the tables exist. The caller closes
// the returned pool.
func connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, *database.Accessor, error) {
	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	pool, err := database.Connect(connectCtx, cfg.ConnString(), database.PoolSettings(cfg))
	if err != nil {
		return nil, nil, err
	}

	acc := database.NewAccessor(pool)
	if err := acc.WithConn(ctx, func(q *database.Queries) error {
		return q.CreateTables(ctx)
	}); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return pool, acc, nil
}
